package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	bookinghandler "carrental/internal/bookings/handler"
	bookingrepo "carrental/internal/bookings/repository"
	bookingservice "carrental/internal/bookings/service"
	"carrental/internal/bookings/validator"
	cataloghandler "carrental/internal/catalog/handler"
	catalogrepo "carrental/internal/catalog/repository"
	catalogservice "carrental/internal/catalog/service"
	healthhandler "carrental/internal/health/handler"
	"carrental/pkg/app"
	"carrental/pkg/config"
	"carrental/pkg/identity"
	"carrental/pkg/kvstore"
	"carrental/pkg/logger"
	"carrental/pkg/model"
)

type stack struct {
	handler  http.Handler
	bookings bookingservice.BookingService
}

func newStack(t *testing.T, rateLimit int) *stack {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{
		Port:              "8080",
		RateLimitRequests: rateLimit,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
		IdempotencyTTL:    time.Hour,
		MaxRequestSize:    config.DefaultMaxRequestSize,
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		ShutdownTimeout:   time.Second,
		Log:               log,
	}

	repo, err := catalogrepo.NewStaticCatalog([]model.Car{
		{ID: "A", Brand: "Toyota", Type: "Sedan", Year: 2022, Seats: 5, PricePerDay: 1000},
		{ID: "B", Brand: "BMW", Type: "Luxury", Year: 2023, Seats: 5, PricePerDay: 2000},
	})
	if err != nil {
		t.Fatalf("NewStaticCatalog() error = %v", err)
	}
	catalog := catalogservice.NewCatalogService(repo, log)

	store := kvstore.NewMemory()
	bookings := bookingservice.NewBookingService(
		bookingrepo.NewLedgerRepository(store, bookingrepo.DefaultLedgerKey, log),
		catalog,
		validator.NewBookingValidator(log),
		log,
	)
	bookings.Load(context.Background())

	application := app.NewApplication(cfg)
	application.SetApp(
		healthhandler.NewHealthHandler(store, repo.Len, log),
		identity.NewHeaderProvider(),
		cataloghandler.NewCatalogHandler(catalog, log),
		bookinghandler.NewBookingHandler(bookings, nil, int64(cfg.MaxRequestSize), log),
	)
	return &stack{handler: application.Handler(), bookings: bookings}
}

func (s *stack) do(method, target, userID, idemKey, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(identity.HeaderUserID, userID)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

const bookingBody = `{
	"car_id": "A",
	"pickup_location": "Bengaluru Airport",
	"dropoff_location": "MG Road",
	"pickup_date": "2026-05-10T10:00:00Z",
	"return_date": "2026-05-13T10:00:00Z"
}`

func TestApplication_HealthAndReady(t *testing.T) {
	s := newStack(t, 100)

	for _, path := range []string{"/health", "/ready"} {
		rec := s.do(http.MethodGet, path, "", "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, body = %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestApplication_BookingFlow(t *testing.T) {
	s := newStack(t, 100)

	rec := s.do(http.MethodPost, "/api/v1/bookings", "u1", "", bookingBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var created struct {
		Data bookinghandler.BookingView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Data.TotalPrice != 3000 {
		t.Errorf("total_price = %v, want 3000", created.Data.TotalPrice)
	}

	list := s.do(http.MethodGet, "/api/v1/bookings", "u1", "", "")
	if !strings.Contains(list.Body.String(), created.Data.ID) {
		t.Errorf("list missing booking: %s", list.Body.String())
	}

	del := s.do(http.MethodDelete, "/api/v1/bookings/id/"+created.Data.ID, "u1", "", "")
	if del.Code != http.StatusNoContent {
		t.Errorf("cancel status = %d", del.Code)
	}
	if got := s.bookings.GetBookingsForUser(context.Background(), "u1"); len(got) != 0 {
		t.Errorf("bookings after cancel = %v", got)
	}
}

func TestApplication_IdempotentCreate(t *testing.T) {
	s := newStack(t, 100)

	first := s.do(http.MethodPost, "/api/v1/bookings", "u1", "retry-1", bookingBody)
	second := s.do(http.MethodPost, "/api/v1/bookings", "u1", "retry-1", bookingBody)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("second response was not replayed")
	}
	if first.Body.String() != second.Body.String() {
		t.Error("replayed body differs")
	}
	if got := s.bookings.GetBookingsForUser(context.Background(), "u1"); len(got) != 1 {
		t.Errorf("bookings = %d, want 1", len(got))
	}

	// same key, different user
	s.do(http.MethodPost, "/api/v1/bookings", "u2", "retry-1", bookingBody)
	if got := s.bookings.GetBookingsForUser(context.Background(), "u2"); len(got) != 1 {
		t.Errorf("u2 bookings = %d, want 1", len(got))
	}
}

func TestApplication_Rejections(t *testing.T) {
	s := newStack(t, 100)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(bookingBody))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(identity.HeaderUserID, "u1")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("content type status = %d, want 415", rec.Code)
	}

	if rec := s.do(http.MethodPost, "/api/v1/bookings", "", "", bookingBody); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}
}

func TestApplication_RateLimitPerUser(t *testing.T) {
	s := newStack(t, 2)

	for i := 0; i < 2; i++ {
		if rec := s.do(http.MethodGet, "/api/v1/cars", "u1", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	limited := s.do(http.MethodGet, "/api/v1/cars", "u1", "", "")
	if limited.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", limited.Code)
	}
	if limited.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	if rec := s.do(http.MethodGet, "/api/v1/cars", "u2", "", ""); rec.Code != http.StatusOK {
		t.Errorf("other user status = %d, want 200", rec.Code)
	}
}
