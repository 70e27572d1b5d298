// Package providers is the chat-completion client the judge uses to
// narrate phases.
//
// # Architecture
//
//  1. Provider interface: SendCompletion, GetName, GetConfig, Close
//  2. HTTPProvider: pooled client, retry with exponential backoff on
//     network errors and 5xx, typed errors for 401/403, 429 and timeouts
//  3. Adapters: openai (any OpenAI-compatible chat API) and anthropic
//  4. providerfactory builds the adapter named by ProviderConfig.Type
//
// # Response Text
//
// Upstream APIs disagree on where the assistant text lives. ContentText
// flattens string, object and list content values; the adapters use it to
// probe the known locations in order and fail with a ParseError when none
// yields text.
//
// # Error Handling
//
//   - AuthError: 401/403, not retried
//   - RateLimitError: 429, not retried, RetryAfter from the header
//   - TimeoutError: an attempt exceeded ProviderConfig.Timeout
//   - ProviderError: other non-2xx answers and transport failures
//   - ParseError: a 2xx answer without usable text
package providers
