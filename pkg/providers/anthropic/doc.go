// Package anthropic implements the provider adapter for Anthropic's
// Messages API.
//
// Requests carry x-api-key and anthropic-version 2023-06-01. The system
// prompt travels in the top-level system field; system-role messages are
// folded into it. The configured api_url gets /messages appended unless it
// already ends with it.
package anthropic
