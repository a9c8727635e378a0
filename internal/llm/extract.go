package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/applytrack/internal/types"
)

// extractionPrompt instructs the model to extract only what the email
// explicitly states. Unclear values must be null, never guessed.
const extractionPrompt = `You extract structured data from job application emails.

Rules:
- Extract only information that is explicitly stated in the text. Do not infer or invent anything.
- If a value is not clearly identifiable, return null.

contact_person:
- Only a personal name (first + last); never teams, departments or shared mailboxes.
- The "From:" line may only be used if it clearly contains a personal name.

role_title:
- Job title without additions such as (m/f/d).

postal_address:
- Return ONLY a postal address in ONE LINE: "<street> <house_number>, <postal_code> <city>".
- No company name, department, PO box or country.

status:
- "rejected" = clear rejection
- "invited" = only an explicit invitation to an interview/meeting/call
- "offer" = a contract or job offer
- "acknowledged" = all other cases

event_date:
- The date the email refers to, format YYYY-MM-DD, or null.

Return ONLY valid JSON matching this exact structure:
{
  "employer_name": string|null,
  "contact_person": string|null,
  "role_title": string|null,
  "postal_address": string|null,
  "status": string,
  "event_date": string|null
}

Input email:
"""
%s
"""`

// payloadSchema validates the model output before it enters the pipeline.
// The core never trusts schema completeness of raw payloads.
const payloadSchema = `{
	"type": "object",
	"properties": {
		"employer_name": {"type": ["string", "null"]},
		"contact_person": {"type": ["string", "null"]},
		"role_title": {"type": ["string", "null"]},
		"postal_address": {"type": ["string", "null"]},
		"status": {"type": ["string", "null"]},
		"event_date": {"type": ["string", "null"]}
	},
	"required": ["employer_name", "status"],
	"additionalProperties": false
}`

// payload mirrors the JSON shape the model is asked for.
type payload struct {
	EmployerName  *string `json:"employer_name"`
	ContactPerson *string `json:"contact_person"`
	RoleTitle     *string `json:"role_title"`
	PostalAddress *string `json:"postal_address"`
	Status        *string `json:"status"`
	EventDate     *string `json:"event_date"`
}

// Extractor turns email text into RawExtraction payloads.
type Extractor struct {
	client Client
	schema *gojsonschema.Schema
}

// NewExtractor wraps a Client for extraction.
func NewExtractor(client Client) (*Extractor, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile payload schema: %w", err)
	}
	return &Extractor{client: client, schema: schema}, nil
}

// Extract sends one email to the model and returns the raw extraction. A
// failed extraction never returns an error: the payload comes back with
// empty fields and a failure note, so the record is flagged for review
// instead of being lost.
func (e *Extractor) Extract(ctx context.Context, emailText, emailID string, receivedAt time.Time) types.RawExtraction {
	raw := types.RawExtraction{
		EmailID:    emailID,
		IngestedAt: receivedAt.UTC(),
		Snippet:    snippet(emailText),
	}

	response, err := e.client.GenerateJSON(ctx, fmt.Sprintf(extractionPrompt, emailText))
	if err != nil {
		raw.FailureNote = err.Error()
		return raw
	}

	parsed, err := e.parsePayload(response)
	if err != nil {
		raw.FailureNote = err.Error()
		return raw
	}

	raw.EmployerName = deref(parsed.EmployerName)
	raw.ContactPerson = deref(parsed.ContactPerson)
	raw.RoleTitle = deref(parsed.RoleTitle)
	raw.PostalAddress = deref(parsed.PostalAddress)
	raw.StatusPhrase = deref(parsed.Status)
	raw.EventDate = deref(parsed.EventDate)
	return raw
}

// parsePayload validates the model output against the schema and decodes it.
func (e *Extractor) parsePayload(response string) (*payload, error) {
	if strings.TrimSpace(response) == "" {
		return nil, &ParseError{Message: "model returned empty output"}
	}

	result, err := e.schema.Validate(gojsonschema.NewStringLoader(response))
	if err != nil {
		return nil, &ParseError{Message: "payload is not valid JSON", Cause: err}
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, &ParseError{Message: "payload failed schema validation: " + strings.Join(details, "; ")}
	}

	var p payload
	if err := json.Unmarshal([]byte(response), &p); err != nil {
		return nil, &ParseError{Message: "decoding payload", Cause: err}
	}
	return &p, nil
}

// snippet keeps the first lines of the email for the audit trail.
func snippet(text string) string {
	const maxLen = 200
	text = strings.TrimSpace(text)
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
