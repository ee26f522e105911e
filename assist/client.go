package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	retries int
}

// NewClient creates a backend client. baseURL is the API root, e.g.
// "https://api.openai.com/v1".
func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		retries: 3,
	}
}

// Complete sends the prompt and returns the completion text. Rate-limit
// and 5xx responses are retried with exponential backoff; auth errors
// are returned immediately.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, int, error) {
	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("marshaling request: %w", err)
	}

	var (
		content string
		tokens  int
	)
	err = retryWithBackoff(ctx, c.retries, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		httpResp, err := c.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		switch {
		case httpResp.StatusCode == http.StatusTooManyRequests:
			return &RateLimitedError{}
		case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
			return &AuthError{Message: strings.TrimSpace(string(respBody))}
		case httpResp.StatusCode >= 500:
			return &ServerError{StatusCode: httpResp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		case httpResp.StatusCode != http.StatusOK:
			return fmt.Errorf("assist: API error (status %d): %s", httpResp.StatusCode, respBody)
		}

		var result chatResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if len(result.Choices) == 0 {
			return errors.New("assist: no choices in response")
		}
		if result.Choices[0].Message.Content == "" {
			return errors.New("assist: empty content in response")
		}

		content = result.Choices[0].Message.Content
		tokens = result.Usage.TotalTokens
		return nil
	})

	return content, tokens, err
}

// retryWithBackoff retries fn on rate-limit and server errors with
// exponential backoff. Other errors return immediately.
func retryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if IsAuthError(lastErr) {
			return lastErr
		}

		var rle *RateLimitedError
		var se *ServerError
		if !errors.As(lastErr, &rle) && !errors.As(lastErr, &se) {
			return lastErr
		}

		if attempt < maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	TotalTokens int `json:"total_tokens"`
}
