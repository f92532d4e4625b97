package errors

import "errors"

var (
	ErrCarNotFound = errors.New("car not found")

	ErrInvalidCatalog = errors.New("invalid catalog")

	ErrDuplicateCarID = errors.New("duplicate car id in catalog")

	ErrUnsupportedFormat = errors.New("unsupported catalog format")
)
