// Package recorder writes dispatch evidence asynchronously.
//
// Record fills in the id (UUID v4) and timestamp, hashes the request and
// response payloads, truncates them to MaxFieldLength and queues the record.
// A background worker drains the queue into storage. When the queue is full,
// Record waits up to WriteTimeout and then drops the record with a
// RecorderError.
//
// Close stops accepting records, drains the queue and waits for the last
// write. Records submitted after Close fail with context.Canceled.
package recorder
