package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/slotwise/slotwise/internal/google"
)

// Client wraps the Gmail service
type Client struct {
	svc           *gmail.Service
	account       string // The account this client is associated with
	tokenProvider google.TokenProvider
}

// Account returns the account name this client is associated with
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccount checks if a valid OAuth token exists for the specified account
func HasTokenForAccount(account string) bool {
	provider := google.NewFileTokenProvider()
	return provider.HasTokenForAccount(account)
}

// NewClientForAccountWithProvider creates a new Gmail client with OAuth2 authentication
// for a specific account. The OAuth token is retrieved from the provided token provider.
func NewClientForAccountWithProvider(ctx context.Context, account string, tokenProvider google.TokenProvider) (*Client, error) {
	if tokenProvider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := tokenProvider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	conf := google.GetOAuthConfig()
	client := google.NewHTTPClient(ctx, conf.TokenSource(ctx, token))

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:           svc,
		account:       account,
		tokenProvider: tokenProvider,
	}, nil
}

// NewClientForAccount creates a new Gmail client for a specific account
// using the default file-based token provider.
func NewClientForAccount(ctx context.Context, account string) (*Client, error) {
	provider := google.NewFileTokenProvider()
	return NewClientForAccountWithProvider(ctx, account, provider)
}

// NewClient creates a new Gmail client for the default account.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccount(ctx, "default")
}

// ProfileEmail returns the email address of the authenticated user.
func (c *Client) ProfileEmail() (string, error) {
	profile, err := c.svc.Users.GetProfile("me").Do()
	if err != nil {
		return "", fmt.Errorf("failed to get Gmail profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// ListRecentMessages lists the most recent inbox messages with their
// From, Subject and Date headers resolved.
func (c *Client) ListRecentMessages(maxResults int64) ([]MessageSummary, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	res, err := c.svc.Users.Messages.List("me").
		LabelIds("INBOX").
		MaxResults(maxResults).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var summaries []MessageSummary
	for _, m := range res.Messages {
		msg, err := c.svc.Users.Messages.Get("me", m.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Date").
			Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", m.Id, err)
		}
		summaries = append(summaries, toMessageSummary(msg))
	}
	return summaries, nil
}

// GetMessage retrieves a full Gmail message
func (c *Client) GetMessage(messageID string) (*gmail.Message, error) {
	msg, err := c.svc.Users.Messages.Get("me", messageID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// GetMessageBody returns the decoded plain-text body of a message. The
// payload tree is walked depth-first for the first text/plain part; a
// simple message with no parts falls back to the top-level body.
func (c *Client) GetMessageBody(messageID string) (string, error) {
	msg, err := c.GetMessage(messageID)
	if err != nil {
		return "", err
	}

	body, ok := extractPlainText(msg.Payload)
	if !ok {
		return "", fmt.Errorf("message %s has no plain text content", messageID)
	}
	return body, nil
}

// extractPlainText walks a message payload for the first decodable
// text/plain part.
func extractPlainText(part *gmail.MessagePart) (string, bool) {
	if part == nil {
		return "", false
	}

	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		// The API uses base64url, sometimes with and sometimes without
		// padding.
		data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err != nil {
			return "", false
		}
		return string(data), true
	}

	for _, p := range part.Parts {
		if body, ok := extractPlainText(p); ok {
			return body, true
		}
	}
	return "", false
}

// MarkAsRead removes the UNREAD label from a message after it has been
// processed.
func (c *Client) MarkAsRead(messageID string) error {
	_, err := c.svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Do()
	if err != nil {
		return fmt.Errorf("failed to mark message %s as read: %w", messageID, err)
	}
	return nil
}

// SendReply sends a threaded reply to an existing message. The reply
// goes to the original sender with proper In-Reply-To and References
// headers so mail clients keep the conversation together.
func (c *Client) SendReply(messageID, threadID, body string) (string, error) {
	if messageID == "" {
		return "", fmt.Errorf("messageID is required")
	}
	if threadID == "" {
		return "", fmt.Errorf("threadID is required")
	}
	if body == "" {
		return "", fmt.Errorf("body is required")
	}

	msg, err := c.GetMessage(messageID)
	if err != nil {
		return "", fmt.Errorf("failed to get original message: %w", err)
	}

	from := HeaderValue(msg, "From")
	if from == "" {
		return "", fmt.Errorf("original message has no From header")
	}

	raw := composeReply(replyHeaders{
		To:         from,
		Subject:    HeaderValue(msg, "Subject"),
		MessageID:  HeaderValue(msg, "Message-ID"),
		References: HeaderValue(msg, "References"),
	}, body)

	sent, err := c.svc.Users.Messages.Send("me", &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw)),
		ThreadId: threadID,
	}).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send reply: %w", err)
	}
	return sent.Id, nil
}

// replyHeaders carries the original message headers a reply needs.
type replyHeaders struct {
	To         string
	Subject    string
	MessageID  string
	References string
}

// composeReply builds the RFC 2822 reply message.
func composeReply(h replyHeaders, body string) string {
	subject := h.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	references := h.References
	if h.MessageID != "" {
		if references != "" {
			references += " " + h.MessageID
		} else {
			references = h.MessageID
		}
	}

	var b strings.Builder
	b.WriteString("To: " + h.To + "\r\n")
	b.WriteString("Subject: " + encodeRFC2047(subject) + "\r\n")
	if h.MessageID != "" {
		b.WriteString("In-Reply-To: " + h.MessageID + "\r\n")
	}
	if references != "" {
		b.WriteString("References: " + references + "\r\n")
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// encodeRFC2047 encodes a header value for non-ASCII characters.
func encodeRFC2047(s string) string {
	return mime.QEncoding.Encode("UTF-8", s)
}
