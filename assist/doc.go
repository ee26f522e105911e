// Package assist answers ai_assist prompts. When a backend is configured
// it talks to an OpenAI-compatible chat completions API with retry and a
// circuit breaker; otherwise, or while the breaker is open, it degrades
// to a deterministic local response. Backend answers are cached by
// prompt hash.
package assist
