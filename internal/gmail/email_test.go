package gmail

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func b64url(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtractPlainTextSimpleBody(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: b64url("Can we meet next Tuesday at 2pm?")},
	}

	body, ok := extractPlainText(payload)
	require.True(t, ok)
	assert.Equal(t, "Can we meet next Tuesday at 2pm?", body)
}

func TestExtractPlainTextMultipart(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: b64url("<p>Can we meet?</p>")},
			},
			{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: b64url("Can we meet?")},
			},
		},
	}

	body, ok := extractPlainText(payload)
	require.True(t, ok)
	assert.Equal(t, "Can we meet?", body)
}

func TestExtractPlainTextNested(t *testing.T) {
	// multipart/mixed wrapping multipart/alternative, as Gmail builds
	// for messages with attachments.
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "text/plain",
						Body:     &gmail.MessagePartBody{Data: b64url("Deep body")},
					},
				},
			},
			{
				MimeType: "application/pdf",
				Body:     &gmail.MessagePartBody{AttachmentId: "att1"},
			},
		},
	}

	body, ok := extractPlainText(payload)
	require.True(t, ok)
	assert.Equal(t, "Deep body", body)
}

func TestExtractPlainTextUnpadded(t *testing.T) {
	raw := base64.RawURLEncoding.EncodeToString([]byte("unpadded body"))
	payload := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: raw},
	}

	body, ok := extractPlainText(payload)
	require.True(t, ok)
	assert.Equal(t, "unpadded body", body)
}

func TestExtractPlainTextMissing(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "text/html",
		Body:     &gmail.MessagePartBody{Data: b64url("<p>html only</p>")},
	}

	_, ok := extractPlainText(payload)
	assert.False(t, ok)

	_, ok = extractPlainText(nil)
	assert.False(t, ok)
}

func TestHeaderValue(t *testing.T) {
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Bob <bob@example.com>"},
				{Name: "Subject", Value: "Meeting?"},
			},
		},
	}

	assert.Equal(t, "Bob <bob@example.com>", HeaderValue(msg, "From"))
	assert.Equal(t, "Meeting?", HeaderValue(msg, "Subject"))
	assert.Empty(t, HeaderValue(msg, "Message-ID"))
	assert.Empty(t, HeaderValue(&gmail.Message{}, "From"))
	assert.Empty(t, HeaderValue(nil, "From"))
}

func TestHeaderValueIgnoresCase(t *testing.T) {
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "Message-Id", Value: "<orig@mail.example.com>"},
				{Name: "FROM", Value: "bob@example.com"},
			},
		},
	}

	assert.Equal(t, "<orig@mail.example.com>", HeaderValue(msg, "Message-ID"))
	assert.Equal(t, "bob@example.com", HeaderValue(msg, "From"))
}

func TestToMessageSummary(t *testing.T) {
	msg := &gmail.Message{
		Id:       "msg1",
		ThreadId: "thread1",
		Snippet:  "Can we meet...",
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "bob@example.com"},
				{Name: "Subject", Value: "Meeting"},
				{Name: "Date", Value: "Mon, 02 Mar 2026 09:00:00 -0700"},
			},
		},
	}

	summary := toMessageSummary(msg)

	assert.Equal(t, "msg1", summary.ID)
	assert.Equal(t, "thread1", summary.ThreadID)
	assert.Equal(t, "bob@example.com", summary.From)
	assert.Equal(t, "Meeting", summary.Subject)
	assert.Equal(t, "Can we meet...", summary.Snippet)
	assert.Equal(t, 2026, summary.Date.Year())
	assert.Equal(t, time.March, summary.Date.Month())
}

func TestToMessageSummaryInternalDateFallback(t *testing.T) {
	msg := &gmail.Message{
		Id:           "msg2",
		InternalDate: time.Date(2026, time.March, 2, 16, 0, 0, 0, time.UTC).UnixMilli(),
	}

	summary := toMessageSummary(msg)
	assert.Equal(t, 2026, summary.Date.UTC().Year())
}

func TestComposeReply(t *testing.T) {
	raw := composeReply(replyHeaders{
		To:         "bob@example.com",
		Subject:    "Meeting next week",
		MessageID:  "<orig@mail.example.com>",
		References: "<root@mail.example.com>",
	}, "How about Tuesday 10:00?")

	assert.Contains(t, raw, "To: bob@example.com\r\n")
	assert.Contains(t, raw, "Subject: Re: Meeting next week\r\n")
	assert.Contains(t, raw, "In-Reply-To: <orig@mail.example.com>\r\n")
	assert.Contains(t, raw, "References: <root@mail.example.com> <orig@mail.example.com>\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nHow about Tuesday 10:00?"))
}

func TestComposeReplyKeepsExistingRePrefix(t *testing.T) {
	raw := composeReply(replyHeaders{
		To:      "bob@example.com",
		Subject: "Re: Meeting",
	}, "body")

	assert.Contains(t, raw, "Subject: Re: Meeting\r\n")
	assert.NotContains(t, raw, "Re: Re:")
	assert.NotContains(t, raw, "In-Reply-To:")
}

func TestComposeReplyEncodesNonASCIISubject(t *testing.T) {
	raw := composeReply(replyHeaders{
		To:      "bob@example.com",
		Subject: "Grüße",
	}, "body")

	assert.Contains(t, raw, "=?UTF-8?q?")
}
