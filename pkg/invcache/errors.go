package invcache

import "errors"

var (
	// ErrEmptyKey is returned when an operation is given an empty key
	ErrEmptyKey = errors.New("invcache: key must not be empty")

	// ErrInvalidTTL is returned for a negative TTL
	ErrInvalidTTL = errors.New("invcache: ttl must not be negative")

	// ErrInvalidLabel is returned for an empty tag or dependency
	ErrInvalidLabel = errors.New("invcache: tags and dependencies must not be empty")

	// ErrNilFetcher is returned by Cached when no fetcher is given
	ErrNilFetcher = errors.New("invcache: fetcher must not be nil")

	// ErrPersistenceDisabled is returned by Persist when no durable store is configured
	ErrPersistenceDisabled = errors.New("invcache: persistence is not enabled")

	// ErrClosed is returned by writes after Close
	ErrClosed = errors.New("invcache: cache is closed")
)
