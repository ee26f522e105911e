package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonwraymond/localops/cache"
)

const defaultSystemPrompt = "You are a concise assistant embedded in a local operations server. " +
	"Answer briefly and prefer actionable steps."

// Response is the outcome of an assist request.
type Response struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
	// Source is "backend" or "local".
	Source string `json:"source"`
}

// Config configures the assist service.
type Config struct {
	// SystemPrompt overrides the default system prompt.
	SystemPrompt string

	// Model is recorded in cache keys so different models never share
	// cached answers.
	Model string
}

// Service answers prompts via a remote backend when configured, guarded
// by a circuit breaker, with a deterministic local fallback. Successful
// answers are cached by prompt hash.
type Service struct {
	config  Config
	client  *Client
	breaker *Breaker
	store   *cache.Store[Response]
	keyer   cache.Keyer
}

// New creates an assist service. A nil client means no backend is
// configured and every request uses the local fallback. The cache store
// may be nil to disable caching.
func New(config Config, client *Client, breaker *Breaker, store *cache.Store[Response]) *Service {
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaultSystemPrompt
	}
	if breaker == nil {
		breaker = NewBreaker(BreakerConfig{})
	}
	return &Service{
		config:  config,
		client:  client,
		breaker: breaker,
		store:   store,
		keyer:   cache.NewDefaultKeyer(),
	}
}

// Ask answers a prompt. The backend is consulted when configured and the
// breaker allows it; a breaker that is open degrades to the local
// fallback instead of failing the request.
func (s *Service) Ask(ctx context.Context, prompt string) (Response, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Response{}, ErrEmptyPrompt
	}

	key, keyErr := s.keyer.Key("ai_assist", map[string]any{
		"model":  s.config.Model,
		"prompt": prompt,
	})
	if keyErr == nil && s.store != nil {
		if resp, ok := s.store.Get(key); ok {
			return resp, nil
		}
	}

	if s.client == nil {
		return s.fallback(prompt), nil
	}

	var resp Response
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		content, tokens, err := s.client.Complete(ctx, s.config.SystemPrompt, prompt)
		if err != nil {
			return err
		}
		resp = Response{Content: content, TokensUsed: tokens, Source: "backend"}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBackendUnavailable) {
			return s.fallback(prompt), nil
		}
		return Response{}, err
	}

	if keyErr == nil && s.store != nil {
		s.store.Set(key, resp)
	}
	return resp, nil
}

// BreakerState exposes the breaker state for health reporting.
func (s *Service) BreakerState() State {
	return s.breaker.State()
}

// fallback produces a deterministic local answer. Fallback responses are
// never cached so a recovered backend takes over immediately.
func (s *Service) fallback(prompt string) Response {
	words := len(strings.Fields(prompt))
	content := fmt.Sprintf(
		"No assist backend is currently available. Your prompt (%d words) was received:\n\n%s\n\n"+
			"Configure assist.base_url and an API key to get model-generated answers.",
		words, truncatePrompt(prompt, 500))
	return Response{Content: content, Source: "local"}
}

// truncatePrompt cuts s to at most max bytes without splitting a rune.
func truncatePrompt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
