package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// defaultModel is the Gemini model used for classification.
const defaultModel = "gemini-2.5-flash"

// secureHTTPClient is a configured HTTP client with proper timeouts.
var secureHTTPClient = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
}

// Classifier calls the Gemini generateContent endpoint with a response
// schema so the model's answer is machine-readable JSON.
type Classifier struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *Classifier) { c.baseURL = url }
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Classifier) { c.model = model }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Classifier) { c.httpClient = client }
}

// NewClassifier creates a classifier using the given API key.
func NewClassifier(apiKey string, opts ...Option) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	c := &Classifier{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: secureHTTPClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// responseSchema constrains the model output to the MeetingIntent shape.
var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"isMeetingSuggested": map[string]any{"type": "BOOLEAN"},
		"meetingDetails": map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"topic": map[string]any{
					"type":        "STRING",
					"description": "The main topic or reason for the meeting, inferred from the email context.",
				},
				"attendees": map[string]any{
					"type":        "ARRAY",
					"items":       map[string]any{"type": "STRING"},
					"description": "Names of people mentioned as potential attendees. Exclude the sender unless they name themselves.",
				},
				"suggestedTimes": map[string]any{
					"type": "ARRAY",
					"items": map[string]any{
						"type": "OBJECT",
						"properties": map[string]any{
							"date":    map[string]any{"type": "STRING", "description": "The suggested date as written, e.g. 'next Tuesday' or '2026-03-10'."},
							"time":    map[string]any{"type": "STRING", "description": "The suggested time including timezone if mentioned, e.g. '2 PM PST'."},
							"rawText": map[string]any{"type": "STRING", "description": "The exact snippet from the email suggesting this time."},
						},
						"required": []string{"date", "time", "rawText"},
					},
				},
			},
			"required": []string{"topic", "attendees", "suggestedTimes"},
		},
	},
	"required": []string{"isMeetingSuggested"},
}

const promptTemplate = `You are an intelligent meeting scheduling assistant. Analyze the following email text. Your task is to determine if a meeting is being suggested.
- If a meeting is suggested, set 'isMeetingSuggested' to true and fill out the 'meetingDetails' object with the topic, attendees, and all suggested time slots.
- If no meeting is suggested, set 'isMeetingSuggested' to false and omit the 'meetingDetails' field.
- Be precise in extracting the raw text for suggested times.
- Infer the meeting topic from the context of the email.
- Extract all names mentioned as potential attendees.

Email Text:
---
%s
---
`

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   any    `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Classify analyzes one email body for meeting intent. Model refusals
// (blocked prompts, empty candidates) surface as errors rather than a
// fabricated negative verdict.
func (c *Classifier) Classify(ctx context.Context, emailBody string) (*MeetingIntent, error) {
	if emailBody == "" {
		return nil, fmt.Errorf("email body cannot be empty")
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: fmt.Sprintf(promptTemplate, emailBody)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classification request failed: http status %s", res.Status)
	}

	var gr generateResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		if gr.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("classification request was blocked: %s", gr.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("classification response contained no content")
	}

	var intent MeetingIntent
	if err := json.Unmarshal([]byte(gr.Candidates[0].Content.Parts[0].Text), &intent); err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	if intent.IsMeetingSuggested && intent.Details == nil {
		return nil, fmt.Errorf("model reported a meeting but omitted its details")
	}
	return &intent, nil
}
