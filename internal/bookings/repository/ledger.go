package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	bookingserrors "carrental/internal/bookings/errors"
	"carrental/pkg/kvstore"
	"carrental/pkg/logger"
	"carrental/pkg/model"
)

const (
	DefaultLedgerKey = "bookings"

	// SchemaVersion is written into every persisted ledger document.
	SchemaVersion = 1

	corruptSuffix = ".corrupt."
)

// LedgerRepository persists the whole booking ledger as one document.
type LedgerRepository interface {
	// Load never fails: an absent, unreadable or malformed ledger yields an
	// empty one and the problem is logged.
	Load(ctx context.Context) []model.Booking
	Save(ctx context.Context, bookings []model.Booking) error
	Ping(ctx context.Context) error
}

type kvLedgerRepository struct {
	store kvstore.Store
	key   string
	log   *logger.Logger
	now   func() time.Time
}

func NewLedgerRepository(store kvstore.Store, key string, log *logger.Logger) LedgerRepository {
	if key == "" {
		key = DefaultLedgerKey
	}
	return &kvLedgerRepository{
		store: store,
		key:   key,
		log:   log,
		now:   time.Now,
	}
}

func (r *kvLedgerRepository) Load(ctx context.Context) []model.Booking {
	raw, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			r.log.Info("No persisted booking ledger, starting empty", "key", r.key)
			return []model.Booking{}
		}
		r.log.Error("Failed to read booking ledger, starting empty",
			"key", r.key,
			"error", err,
		)
		return []model.Booking{}
	}

	bookings, err := Decode([]byte(raw))
	if err != nil {
		backupKey := r.key + corruptSuffix + strconv.FormatInt(r.now().UnixNano(), 10)
		r.log.Error("Malformed booking ledger, starting empty",
			"key", r.key,
			"backup_key", backupKey,
			"error", err,
		)
		if setErr := r.store.Set(ctx, backupKey, raw); setErr != nil {
			r.log.Error("Failed to back up malformed booking ledger",
				"backup_key", backupKey,
				"error", setErr,
			)
		}
		return []model.Booking{}
	}

	r.log.Info("Booking ledger loaded", "key", r.key, "count", len(bookings))
	return bookings
}

func (r *kvLedgerRepository) Save(ctx context.Context, bookings []model.Booking) error {
	payload, err := Encode(bookings)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := r.store.Set(ctx, r.key, string(payload)); err != nil {
		return fmt.Errorf("write ledger %q: %w", r.key, err)
	}
	return nil
}

func (r *kvLedgerRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// ledgerDocument is the persisted schema. Field names are part of the
// on-disk format and independent of the API representation.
type ledgerDocument struct {
	Version  int            `json:"version"`
	Bookings []ledgerRecord `json:"bookings"`
}

type ledgerRecord struct {
	ID              string  `json:"id"`
	UserID          string  `json:"userId"`
	CarID           string  `json:"carId"`
	PickupLocation  string  `json:"pickupLocation"`
	DropoffLocation string  `json:"dropoffLocation"`
	PickupDate      string  `json:"pickupDate"`
	ReturnDate      string  `json:"returnDate"`
	TotalPrice      float64 `json:"totalPrice"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"createdAt"`
}

// Encode renders bookings as a versioned ledger document.
func Encode(bookings []model.Booking) ([]byte, error) {
	doc := ledgerDocument{
		Version:  SchemaVersion,
		Bookings: make([]ledgerRecord, 0, len(bookings)),
	}
	for _, b := range bookings {
		pickup, err := formatTimestamp(b.ID, "pickupDate", b.PickupDate)
		if err != nil {
			return nil, err
		}
		ret, err := formatTimestamp(b.ID, "returnDate", b.ReturnDate)
		if err != nil {
			return nil, err
		}
		createdAt, err := formatTimestamp(b.ID, "createdAt", b.CreatedAt)
		if err != nil {
			return nil, err
		}
		doc.Bookings = append(doc.Bookings, ledgerRecord{
			ID:              b.ID,
			UserID:          b.UserID,
			CarID:           b.CarID,
			PickupLocation:  b.PickupLocation,
			DropoffLocation: b.DropoffLocation,
			PickupDate:      pickup,
			ReturnDate:      ret,
			TotalPrice:      b.TotalPrice,
			Status:          string(b.Status),
			CreatedAt:       createdAt,
		})
	}
	return json.Marshal(doc)
}

// Decode parses a ledger document. The legacy bare array of records is
// accepted as well. All failures wrap ErrMalformedLedger.
func Decode(data []byte) ([]model.Booking, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", bookingserrors.ErrMalformedLedger)
	}

	var records []ledgerRecord
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", bookingserrors.ErrMalformedLedger, err)
		}
	} else {
		var doc ledgerDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", bookingserrors.ErrMalformedLedger, err)
		}
		if doc.Version != SchemaVersion {
			return nil, fmt.Errorf("%w: %w %d",
				bookingserrors.ErrMalformedLedger, bookingserrors.ErrUnsupportedVersion, doc.Version)
		}
		records = doc.Bookings
	}

	bookings := make([]model.Booking, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		b, err := rec.toBooking()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", bookingserrors.ErrMalformedLedger, i, err)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate booking id %q", bookingserrors.ErrMalformedLedger, b.ID)
		}
		seen[b.ID] = struct{}{}
		bookings = append(bookings, b)
	}
	return bookings, nil
}

func (rec ledgerRecord) toBooking() (model.Booking, error) {
	if rec.ID == "" {
		return model.Booking{}, errors.New("missing id")
	}
	status := model.BookingStatus(rec.Status)
	if !status.Valid() {
		return model.Booking{}, fmt.Errorf("invalid status %q", rec.Status)
	}
	pickup, err := parseTimestamp("pickupDate", rec.PickupDate)
	if err != nil {
		return model.Booking{}, err
	}
	ret, err := parseTimestamp("returnDate", rec.ReturnDate)
	if err != nil {
		return model.Booking{}, err
	}
	createdAt, err := parseTimestamp("createdAt", rec.CreatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	return model.Booking{
		ID:              rec.ID,
		UserID:          rec.UserID,
		CarID:           rec.CarID,
		PickupLocation:  rec.PickupLocation,
		DropoffLocation: rec.DropoffLocation,
		PickupDate:      pickup,
		ReturnDate:      ret,
		TotalPrice:      rec.TotalPrice,
		Status:          status,
		CreatedAt:       createdAt,
	}, nil
}

// formatTimestamp renders t as RFC 3339. MarshalText refuses years outside
// 0000-9999, which time.Parse could not read back.
func formatTimestamp(id, field string, t time.Time) (string, error) {
	text, err := t.MarshalText()
	if err != nil {
		return "", fmt.Errorf("booking %s: %s: %w", id, field, err)
	}
	return string(text), nil
}

func parseTimestamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing %s", field)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %v", field, err)
	}
	return t, nil
}
