// Package mail fetches job-application emails over IMAP and reduces them to
// plain-text MailItems for extraction.
package mail

import (
	"fmt"
	"net/textproto"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// ProviderConfig holds the IMAP connection settings.
type ProviderConfig struct {
	Host     string
	User     string
	Password string
	Folder   string
}

// MailItem is one fetched email in a simplified structure: decoded headers
// and the body as plain text (HTML converted if needed).
type MailItem struct {
	MessageID  string
	Sender     string
	Subject    string
	Date       string
	Body       string
	ReceivedAt time.Time
}

// Fetcher wraps an IMAP client session.
type Fetcher struct {
	client *client.Client
}

// Connect dials the IMAP server over TLS, logs in and selects the folder.
func Connect(cfg ProviderConfig) (*Fetcher, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("imap host, user and password are required")
	}

	cl, err := client.DialTLS(cfg.Host, nil)
	if err != nil {
		return nil, fmt.Errorf("IMAP connection error: %w", err)
	}
	if err := cl.Login(cfg.User, cfg.Password); err != nil {
		_ = cl.Logout()
		return nil, fmt.Errorf("IMAP login error: %w", err)
	}

	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := cl.Select(folder, true); err != nil {
		_ = cl.Logout()
		return nil, fmt.Errorf("selecting folder %s: %w", folder, err)
	}

	return &Fetcher{client: cl}, nil
}

// Close logs out from the IMAP server.
func (f *Fetcher) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Logout()
}

// Search returns the UIDs of messages since the given date whose subject
// contains any of the search terms. Terms are ORed the way the original
// mailbox query worked; an empty term list matches everything since the date.
func (f *Fetcher) Search(terms []string, since time.Time) ([]uint32, error) {
	var uids []uint32
	seen := make(map[uint32]struct{})

	search := func(criteria *imap.SearchCriteria) error {
		found, err := f.client.UidSearch(criteria)
		if err != nil {
			return fmt.Errorf("IMAP search error: %w", err)
		}
		for _, uid := range found {
			if _, dup := seen[uid]; !dup {
				seen[uid] = struct{}{}
				uids = append(uids, uid)
			}
		}
		return nil
	}

	if len(terms) == 0 {
		criteria := imap.NewSearchCriteria()
		criteria.Since = since
		return uids, search(criteria)
	}
	for _, term := range terms {
		criteria := imap.NewSearchCriteria()
		criteria.Since = since
		criteria.Header = textproto.MIMEHeader{}
		criteria.Header.Set("Subject", term)
		if err := search(criteria); err != nil {
			return nil, err
		}
	}
	return uids, nil
}

// FetchAll downloads and parses the given messages. A message that cannot
// be parsed is skipped with a warning from the caller's point of view: it
// is returned in the second slice rather than aborting the fetch.
func (f *Fetcher) FetchAll(uids []uint32) ([]MailItem, []uint32, error) {
	if len(uids) == 0 {
		return nil, nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchUid}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- f.client.UidFetch(seqSet, items, messages)
	}()

	var out []MailItem
	var failed []uint32
	for msg := range messages {
		item, err := parseMessage(msg, section)
		if err != nil {
			failed = append(failed, msg.Uid)
			continue
		}
		out = append(out, item)
	}
	if err := <-done; err != nil {
		return nil, nil, fmt.Errorf("IMAP fetch error: %w", err)
	}
	return out, failed, nil
}
