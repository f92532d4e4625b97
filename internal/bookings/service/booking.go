package service

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"time"

	"carrental/internal/bookings/events"
	"carrental/internal/bookings/repository"
	"carrental/internal/bookings/validator"
	catalogerrors "carrental/internal/catalog/errors"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/logger"
	"carrental/pkg/model"
	"carrental/pkg/pricing"
	"carrental/pkg/sanitizer"

	"github.com/google/uuid"
)

// priceTolerance absorbs float noise when comparing a caller's quote with
// the calculator's total.
const priceTolerance = 0.005

// CarLookup resolves catalog entries. The catalog service satisfies it.
type CarLookup interface {
	GetCar(id string) (model.Car, bool)
}

// BookingService owns the booking ledger. Mutations are serialized and each
// one is persisted before it becomes visible.
type BookingService interface {
	// Load replaces the in-memory ledger with the persisted one.
	Load(ctx context.Context)
	Create(ctx context.Context, req *model.BookingRequest) (model.Booking, error)
	// Cancel removes the booking. It reports false, without writing, when
	// no booking has that id.
	Cancel(ctx context.Context, id string) (bool, error)
	// Update replaces the booking with the same id. It reports false,
	// without writing, when no booking has that id.
	Update(ctx context.Context, booking model.Booking) (bool, error)
	Get(ctx context.Context, id string) (model.Booking, bool)
	GetBookingsForUser(ctx context.Context, userID string) []model.Booking
	GetCar(id string) (model.Car, bool)
}

type Option func(*bookingService)

// WithClock overrides the time source used for createdAt and event times.
func WithClock(now func() time.Time) Option {
	return func(s *bookingService) { s.now = now }
}

// WithIDGenerator overrides booking id generation.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *bookingService) { s.newID = newID }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *bookingService) { s.publisher = publisher }
}

type bookingService struct {
	mu        sync.RWMutex
	bookings  []model.Booking
	repo      repository.LedgerRepository
	cars      CarLookup
	validator *validator.BookingValidator
	publisher events.Publisher
	log       *logger.Logger
	now       func() time.Time
	newID     func() (string, error)
}

func NewBookingService(
	repo repository.LedgerRepository,
	cars CarLookup,
	validator *validator.BookingValidator,
	log *logger.Logger,
	opts ...Option,
) BookingService {
	s := &bookingService{
		bookings:  []model.Booking{},
		repo:      repo,
		cars:      cars,
		validator: validator,
		publisher: events.NewNoopPublisher(),
		log:       log,
		now:       time.Now,
		newID:     newBookingID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newBookingID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *bookingService) Load(ctx context.Context) {
	bookings := s.repo.Load(ctx)

	s.mu.Lock()
	s.bookings = bookings
	s.mu.Unlock()
}

func (s *bookingService) Create(ctx context.Context, req *model.BookingRequest) (model.Booking, error) {
	if req == nil {
		return model.Booking{}, apperrors.InvalidInput("Booking request cannot be empty")
	}
	s.sanitizeRequest(req)

	if err := s.validator.ValidateRequest(req); err != nil {
		s.log.Warn("Booking request rejected", "user_id", req.UserID, "car_id", req.CarID, "error", err)
		return model.Booking{}, validationError(err)
	}

	car, ok := s.cars.GetCar(req.CarID)
	if !ok {
		s.log.Warn("Booking request for unknown car", "user_id", req.UserID, "car_id", req.CarID)
		return model.Booking{}, apperrors.NotFoundWithID("Car", req.CarID).WithCause(catalogerrors.ErrCarNotFound)
	}

	quote := pricing.Quote(req.PickupDate, req.ReturnDate, car.PricePerDay)
	if req.TotalPrice != nil && math.Abs(*req.TotalPrice-quote.Total) > priceTolerance {
		s.log.Warn("Booking quote does not match catalog price",
			"user_id", req.UserID,
			"car_id", req.CarID,
			"quoted", *req.TotalPrice,
			"expected", quote.Total,
		)
		return model.Booking{}, apperrors.Validation("Quoted total does not match the current price", map[string]any{
			"fields": map[string]string{
				"total_price": "total_price must equal the quoted total",
			},
			"expected_total": quote.Total,
			"days":           quote.Days,
		})
	}

	booking := model.Booking{
		UserID:          req.UserID,
		CarID:           req.CarID,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		PickupDate:      req.PickupDate,
		ReturnDate:      req.ReturnDate,
		TotalPrice:      quote.Total,
		Status:          model.StatusConfirmed,
		CreatedAt:       s.now().UTC(),
	}

	s.mu.Lock()
	id, err := s.nextID()
	if err != nil {
		s.mu.Unlock()
		return model.Booking{}, apperrors.Internal("Failed to generate booking id", err)
	}
	booking.ID = id

	next := make([]model.Booking, 0, len(s.bookings)+1)
	next = append(next, s.bookings...)
	next = append(next, booking)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		s.log.Error("Failed to persist new booking", "id", booking.ID, "error", err)
		return model.Booking{}, persistenceError(err)
	}
	s.mu.Unlock()

	s.log.Info("Booking created successfully",
		"id", booking.ID,
		"user_id", booking.UserID,
		"car_id", booking.CarID,
		"days", quote.Days,
		"total_price", booking.TotalPrice,
	)
	s.notify(ctx, events.BookingCreated, booking)
	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()

	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		s.log.Debug("Cancel of unknown booking ignored", "id", id)
		return false, nil
	}
	cancelled := s.bookings[idx]

	next := make([]model.Booking, 0, len(s.bookings)-1)
	next = append(next, s.bookings[:idx]...)
	next = append(next, s.bookings[idx+1:]...)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		s.log.Error("Failed to persist booking cancellation", "id", id, "error", err)
		return false, persistenceError(err)
	}
	s.mu.Unlock()

	s.log.Info("Booking cancelled successfully", "id", id, "user_id", cancelled.UserID)
	cancelled.Status = model.StatusCancelled
	s.notify(ctx, events.BookingCancelled, cancelled)
	return true, nil
}

func (s *bookingService) Update(ctx context.Context, booking model.Booking) (bool, error) {
	s.sanitizeBooking(&booking)

	s.mu.Lock()

	idx := s.indexOf(booking.ID)
	if idx < 0 {
		s.mu.Unlock()
		s.log.Debug("Update of unknown booking ignored", "id", booking.ID)
		return false, nil
	}
	booking.CreatedAt = s.bookings[idx].CreatedAt

	if err := s.validator.Validate(&booking); err != nil {
		s.mu.Unlock()
		s.log.Warn("Booking update rejected", "id", booking.ID, "error", err)
		return false, validationError(err)
	}

	next := slices.Clone(s.bookings)
	next[idx] = booking
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		s.log.Error("Failed to persist booking update", "id", booking.ID, "error", err)
		return false, persistenceError(err)
	}
	s.mu.Unlock()

	s.log.Info("Booking updated successfully",
		"id", booking.ID,
		"status", booking.Status,
		"total_price", booking.TotalPrice,
	)
	s.notify(ctx, events.BookingUpdated, booking)
	return true, nil
}

func (s *bookingService) Get(ctx context.Context, id string) (model.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return model.Booking{}, false
	}
	return s.bookings[idx], true
}

func (s *bookingService) GetBookingsForUser(ctx context.Context, userID string) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.Booking{}
	for _, b := range s.bookings {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	return result
}

func (s *bookingService) GetCar(id string) (model.Car, bool) {
	return s.cars.GetCar(id)
}

// commit persists next and, only on success, makes it the current ledger.
// Callers hold s.mu.
func (s *bookingService) commit(ctx context.Context, next []model.Booking) error {
	if err := s.repo.Save(ctx, next); err != nil {
		return err
	}
	s.bookings = next
	return nil
}

// nextID returns an id not yet present in the ledger. Callers hold s.mu.
func (s *bookingService) nextID() (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		id, err := s.newID()
		if err != nil {
			return "", err
		}
		if s.indexOf(id) < 0 {
			return id, nil
		}
	}
	return "", errors.New("booking id generator keeps returning ids already in use")
}

func (s *bookingService) indexOf(id string) int {
	return slices.IndexFunc(s.bookings, func(b model.Booking) bool { return b.ID == id })
}

func (s *bookingService) notify(ctx context.Context, eventType events.Type, booking model.Booking) {
	event := events.Event{
		Type:       eventType,
		Booking:    booking,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"id", booking.ID,
			"error", err,
		)
	}
}

func (s *bookingService) sanitizeRequest(req *model.BookingRequest) {
	req.UserID = sanitizer.TrimAndNormalize(req.UserID)
	req.CarID = sanitizer.TrimAndNormalize(req.CarID)
	req.PickupLocation = sanitizer.NormalizeLocation(req.PickupLocation)
	req.DropoffLocation = sanitizer.NormalizeLocation(req.DropoffLocation)
}

func (s *bookingService) sanitizeBooking(b *model.Booking) {
	b.PickupLocation = sanitizer.NormalizeLocation(b.PickupLocation)
	b.DropoffLocation = sanitizer.NormalizeLocation(b.DropoffLocation)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"fields": verrs.Fields(),
		})
	}
	return apperrors.Internal("Booking validation failed", err)
}

func persistenceError(err error) error {
	return apperrors.Persistence("Failed to save booking ledger", err)
}
