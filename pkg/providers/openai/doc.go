// Package openai implements the provider adapter for OpenAI-compatible chat
// completion APIs.
//
// The configured api_url may be a bare host, a /v1 base or the full
// /chat/completions endpoint; NormalizeURL completes it. The key is sent
// both as a bearer token and as x-api-key, which covers the common
// self-hosted gateways.
//
// Answers are decoded leniently by ExtractText, which understands the
// OpenAI, reasoning-model, Responses-style and Gemini-style shapes as well
// as an accidentally streamed body.
package openai
