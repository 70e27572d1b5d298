// Package logging configures structured logging on top of log/slog.
//
// # Overview
//
// New builds a slog handler (JSON, text or console) wrapped in a redacting
// handler. SetDefault installs it as slog's default, so every package that
// logs through slog.Default().With("component", ...) gets:
//
//   - credential redaction (API keys, bearer tokens, password assignments)
//   - optional contact redaction (emails, phone numbers, IP addresses)
//   - the room, round, phase and seat carried by the context, plus trace
//     and span ids when a span is active
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	ctx = logging.WithRoom(ctx, "room-1")
//	slog.InfoContext(ctx, "game started")  // includes room=room-1
//
// # Redaction
//
// Values under sensitive keys (api_key, token, password, ...) are replaced
// wholesale; other string values are scanned with the pattern set. Game text
// only goes through NewCredentialRedactor, because the contact patterns would
// rewrite seat numbers and vote counts.
package logging
