package gmail

import (
	"net/mail"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
)

// MessageSummary represents a simplified inbox message for listing.
type MessageSummary struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Snippet  string
	Date     time.Time
}

// HeaderValue returns the value of a header from a message payload, or
// the empty string if the header is absent. Header names are matched
// case-insensitively, some senders emit Message-Id instead of
// Message-ID.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// toMessageSummary converts a Gmail message to a MessageSummary.
func toMessageSummary(m *gmail.Message) MessageSummary {
	summary := MessageSummary{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		From:     HeaderValue(m, "From"),
		Subject:  HeaderValue(m, "Subject"),
		Snippet:  m.Snippet,
	}
	if date := HeaderValue(m, "Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			summary.Date = t
		}
	}
	if summary.Date.IsZero() && m.InternalDate > 0 {
		summary.Date = time.UnixMilli(m.InternalDate)
	}
	return summary
}
