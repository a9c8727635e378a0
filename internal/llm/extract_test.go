package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeClient) Close() error { return nil }

func newTestExtractor(t *testing.T, client Client) *Extractor {
	t.Helper()
	e, err := NewExtractor(client)
	require.NoError(t, err)
	return e
}

func TestExtractValidPayload(t *testing.T) {
	client := &fakeClient{response: `{
		"employer_name": "Acme GmbH",
		"contact_person": "Jane Doe",
		"role_title": "Software Engineer",
		"postal_address": "Musterstr. 12, 10115 Berlin",
		"status": "invited",
		"event_date": "2026-03-12"
	}`}
	e := newTestExtractor(t, client)

	received := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	raw := e.Extract(context.Background(), "From: jane@acme.de\n\nEinladung", "msg-1", received)

	assert.Empty(t, raw.FailureNote)
	assert.Equal(t, "msg-1", raw.EmailID)
	assert.Equal(t, received, raw.IngestedAt)
	assert.Equal(t, "Acme GmbH", raw.EmployerName)
	assert.Equal(t, "Jane Doe", raw.ContactPerson)
	assert.Equal(t, "Software Engineer", raw.RoleTitle)
	assert.Equal(t, "Musterstr. 12, 10115 Berlin", raw.PostalAddress)
	assert.Equal(t, "invited", raw.StatusPhrase)
	assert.Equal(t, "2026-03-12", raw.EventDate)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Einladung")
}

func TestExtractNullFields(t *testing.T) {
	client := &fakeClient{response: `{
		"employer_name": "Acme GmbH",
		"contact_person": null,
		"role_title": null,
		"postal_address": null,
		"status": "acknowledged",
		"event_date": null
	}`}
	e := newTestExtractor(t, client)

	raw := e.Extract(context.Background(), "body", "msg-1", time.Now())

	assert.Empty(t, raw.FailureNote)
	assert.Equal(t, "Acme GmbH", raw.EmployerName)
	assert.Empty(t, raw.ContactPerson)
	assert.Empty(t, raw.RoleTitle)
	assert.Empty(t, raw.EventDate)
}

func TestExtractAPIFailure(t *testing.T) {
	client := &fakeClient{err: &APICallError{Message: "generate content", Cause: fmt.Errorf("quota exceeded")}}
	e := newTestExtractor(t, client)

	raw := e.Extract(context.Background(), "body", "msg-1", time.Now())

	assert.Equal(t, "msg-1", raw.EmailID)
	assert.Empty(t, raw.EmployerName)
	assert.Contains(t, raw.FailureNote, "quota exceeded")
}

func TestExtractInvalidPayload(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"empty output", ""},
		{"not json", "sorry, I cannot help with that"},
		{"missing required field", `{"contact_person": "Jane"}`},
		{"extra field", `{"employer_name": "Acme", "status": "rejected", "mood": "bad"}`},
		{"wrong type", `{"employer_name": 42, "status": "rejected"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, &fakeClient{response: tt.response})
			raw := e.Extract(context.Background(), "body", "msg-1", time.Now())
			assert.NotEmpty(t, raw.FailureNote)
			assert.Empty(t, raw.EmployerName)
		})
	}
}

func TestExtractSnippet(t *testing.T) {
	client := &fakeClient{response: `{"employer_name": "Acme", "status": "acknowledged"}`}
	e := newTestExtractor(t, client)

	long := strings.Repeat("x", 500)
	raw := e.Extract(context.Background(), long, "msg-1", time.Now())

	assert.Len(t, raw.Snippet, 200)
}

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain json", `{"a": 1}`, `{"a": 1}`},
		{"fenced json", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanJSONBlock(tt.input))
		})
	}
}
