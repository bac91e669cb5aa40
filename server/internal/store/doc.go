// Package store holds served predictions.
//
// Store is a thread-safe in-memory cache of predicted labels keyed by the
// encoded feature row, with TTL eviction. History is an optional SQLite audit
// log of every served prediction, pruned on a cron schedule.
package store
