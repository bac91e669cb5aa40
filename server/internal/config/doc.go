// Package config loads the delaycast configuration from config.yaml.
//
// Sections:
//   - server : HTTP port, API-key auth, rate limit, live stream interval
//   - dataset: training CSV path and optional label column
//   - model  : solver iterations, L2 penalty, seed, class weighting, holdout
//   - cache  : prediction cache TTL
//   - storage: prediction history backend (sqlite | none) and retention
//   - alerts : evaluation interval, rules and webhook targets
//   - log    : level (debug | info | warn | error) and format (json | text)
//   - tracing: span exporter (none | stdout | otlp), collector endpoint, sample ratio
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, current, fn) reloads the file on change and reports which
// sections differ and which of those need a restart.
package config
