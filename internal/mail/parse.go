package mail

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-imap"
	gomail "github.com/emersion/go-message/mail"
)

// parseMessage reduces one fetched IMAP message to a MailItem. The body
// prefers a text/plain part; an HTML-only message is converted to text.
func parseMessage(msg *imap.Message, section *imap.BodySectionName) (MailItem, error) {
	body := msg.GetBody(section)
	if body == nil {
		return MailItem{}, fmt.Errorf("message %d has no body section", msg.Uid)
	}

	mr, err := gomail.CreateReader(body)
	if err != nil {
		return MailItem{}, fmt.Errorf("reading message %d: %w", msg.Uid, err)
	}

	item := MailItem{
		MessageID:  fmt.Sprintf("imap-%d", msg.Uid),
		ReceivedAt: msg.InternalDate.UTC(),
	}
	if msg.Envelope != nil && msg.Envelope.MessageId != "" {
		item.MessageID = strings.Trim(msg.Envelope.MessageId, "<>")
	}

	header := mr.Header
	item.Sender = decodeHeader(header.Get("From"))
	item.Subject = decodeHeader(header.Get("Subject"))
	item.Date = header.Get("Date")

	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			// A broken part does not invalidate what was already read.
			break
		}
		inline, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/plain":
			if plain == "" {
				plain = string(data)
			}
		case "text/html":
			if html == "" {
				html = string(data)
			}
		}
	}

	if plain != "" {
		item.Body = CleanText(plain)
	} else if html != "" {
		text, err := HTMLToText(html)
		if err != nil {
			return MailItem{}, fmt.Errorf("converting message %d body: %w", msg.Uid, err)
		}
		item.Body = text
	}
	if item.Body == "" {
		return MailItem{}, fmt.Errorf("message %d has no readable body", msg.Uid)
	}
	return item, nil
}

// decodeHeader decodes RFC 2047 encoded-word headers; broken encodings fall
// back to the raw value rather than failing the message.
func decodeHeader(raw string) string {
	if raw == "" {
		return ""
	}
	decoder := &mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// FormatForExtraction builds the exact text handed to the LLM: the decoded
// headers followed by the body.
func FormatForExtraction(item MailItem) string {
	return "From: " + item.Sender + "\n" +
		"Subject: " + item.Subject + "\n" +
		"Date: " + item.Date + "\n\n" +
		item.Body
}
