// Package cache keeps rendered directory listings in memory keyed by the
// normalized request path. Records carry an absolute expiry; Get evicts an
// expired record lazily and Sweep (or the janitor) removes the rest. Nothing
// survives a process restart.
package cache
