// Package query validates evidence queries before they reach a storage
// backend. The records CLI runs every user-supplied filter through Validate
// and ApplyDefaults.
package query
