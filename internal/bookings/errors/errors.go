package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	// ErrMalformedLedger means the persisted ledger could not be decoded.
	ErrMalformedLedger = errors.New("malformed booking ledger")

	ErrUnsupportedVersion = errors.New("unsupported ledger schema version")
)
