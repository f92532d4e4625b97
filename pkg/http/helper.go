package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "carrental/pkg/errors"
)

// DecodeJSON reads a single JSON object from the body into dst, rejecting
// unknown fields and bodies larger than maxBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var timeErr *time.ParseError
		switch {
		case errors.Is(err, io.EOF):
			return apperrors.InvalidInput("Request body cannot be empty")
		case errors.As(err, &maxErr):
			return apperrors.InvalidInput(fmt.Sprintf("Request body must not exceed %d bytes", maxErr.Limit))
		case errors.As(err, &syntaxErr):
			return apperrors.InvalidInput(fmt.Sprintf("Malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return apperrors.InvalidInput(fmt.Sprintf("Invalid value for field %q", typeErr.Field))
		case errors.As(err, &timeErr):
			return apperrors.InvalidInput("Dates must be RFC 3339 timestamps")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return apperrors.InvalidInput(fmt.Sprintf("Unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field ")))
		default:
			return apperrors.InvalidInput("Invalid request body")
		}
	}

	if dec.More() {
		return apperrors.InvalidInput("Request body must contain a single JSON object")
	}
	return nil
}

// QueryFloat parses an optional float query parameter.
func QueryFloat(r *http.Request, name string) (*float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid %s parameter: %s", name, raw))
	}
	return &v, nil
}

// QueryTime parses a required RFC 3339 query parameter.
func QueryTime(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("%s parameter is required", name))
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(fmt.Sprintf("invalid %s parameter: %s (want RFC 3339)", name, raw))
	}
	return t, nil
}

// QueryOptional returns the trimmed parameter, treating empty and any of the
// given sentinels (compared case-insensitively) as unset.
func QueryOptional(r *http.Request, name string, sentinels ...string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	for _, s := range sentinels {
		if strings.EqualFold(raw, s) {
			return nil
		}
	}
	return &raw
}
