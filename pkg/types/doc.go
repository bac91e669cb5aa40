// Package types defines shared Go types used by both the server and delayctl.
// These are the canonical in-memory representations of raw flight observations,
// separate from the CSV columns and the JSON wire format.
package types
