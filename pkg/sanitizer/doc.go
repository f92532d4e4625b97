// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent and never fail: invalid input normalizes to
// an empty string or an empty slice.
package sanitizer
