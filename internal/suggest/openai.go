package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"linkmind/internal/domain"
	"linkmind/internal/metadata"
)

const systemPrompt = "You are a tagging assistant for a personal bookmark " +
	"manager. Given a web page's title, description, and site, reply with a " +
	"JSON array of 3 to 6 short topical tag names in the page's language. " +
	"Reply with the JSON array only, no prose."

// costPerToken is a flat blended estimate used for accounting; billing truth
// lives with the provider.
const costPerToken = 0.0000006

// OpenAIClient implements Suggester against any OpenAI-compatible
// chat-completions endpoint. Responses are memoized per prompt so repeated
// runs over the same page do not spend tokens twice.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	log        logrus.FieldLogger

	mu   sync.Mutex
	memo map[string][]string
}

var _ Suggester = (*OpenAIClient)(nil)

// NewOpenAIClient builds a suggestion client.
func NewOpenAIClient(endpoint, model, apiKey string, logger logrus.FieldLogger) *OpenAIClient {
	return &OpenAIClient{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log:  logger.WithField("component", "suggester"),
		memo: make(map[string][]string),
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Suggest asks the model for tag names describing the page.
func (c *OpenAIClient) Suggest(ctx context.Context, md metadata.Metadata, userID int64, plan domain.Plan) (Suggestion, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return Suggestion{}, fmt.Errorf("suggestion client misconfigured")
	}

	prompt := buildPrompt(md)

	c.mu.Lock()
	cached, ok := c.memo[prompt]
	c.mu.Unlock()
	if ok {
		return Suggestion{Tags: cached, FromCache: true}, nil
	}

	log := c.log.WithFields(logrus.Fields{
		"user_id": userID,
		"model":   c.model,
	})

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("marshal suggestion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Suggestion{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("request suggestions: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Suggestion{}, fmt.Errorf("read suggestion response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Warn("AI provider rate limited the request")
		return Suggestion{}, fmt.Errorf("provider status %s: %w", resp.Status, ErrResourceExhausted)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Suggestion{}, fmt.Errorf("provider error %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Suggestion{}, fmt.Errorf("decode suggestion response: %w", err)
	}
	if parsed.Error != nil {
		if parsed.Error.Code == "insufficient_quota" || parsed.Error.Type == "insufficient_quota" {
			return Suggestion{}, fmt.Errorf("%s: %w", parsed.Error.Message, ErrResourceExhausted)
		}
		return Suggestion{}, fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Suggestion{}, fmt.Errorf("provider returned no choices")
	}

	tags, err := parseTagArray(parsed.Choices[0].Message.Content)
	if err != nil {
		return Suggestion{}, fmt.Errorf("parse model reply: %w", err)
	}

	c.mu.Lock()
	c.memo[prompt] = tags
	c.mu.Unlock()

	tokens := parsed.Usage.TotalTokens
	log.WithFields(logrus.Fields{
		"tags":   len(tags),
		"tokens": tokens,
	}).Info("Tag suggestions received")

	return Suggestion{
		Tags:       tags,
		TokensUsed: tokens,
		Cost:       float64(tokens) * costPerToken,
	}, nil
}

func buildPrompt(md metadata.Metadata) string {
	var b strings.Builder
	if md.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", md.Title)
	}
	if md.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", md.Description)
	}
	if md.SiteName != "" {
		fmt.Fprintf(&b, "Site: %s\n", md.SiteName)
	}
	if md.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", md.Domain)
	}
	return b.String()
}

// parseTagArray pulls a JSON string array out of the model reply, tolerating
// markdown code fences around it.
func parseTagArray(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "["); start >= 0 {
		if end := strings.LastIndex(content, "]"); end > start {
			content = content[start : end+1]
		}
	}

	var tags []string
	if err := json.Unmarshal([]byte(content), &tags); err != nil {
		return nil, fmt.Errorf("expected JSON array of strings: %w", err)
	}
	return tags, nil
}
