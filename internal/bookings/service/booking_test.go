package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"carrental/internal/bookings/events"
	"carrental/internal/bookings/repository"
	"carrental/internal/bookings/validator"
	catalogerrors "carrental/internal/catalog/errors"
	apperrors "carrental/pkg/errors"
	"carrental/pkg/kvstore"
	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type carMap map[string]model.Car

func (m carMap) GetCar(id string) (model.Car, bool) {
	car, ok := m[id]
	return car, ok
}

var testCars = carMap{
	"A": {ID: "A", Brand: "Toyota", Type: "Sedan", Year: 2022, Seats: 5, PricePerDay: 1000},
	"B": {ID: "B", Brand: "BMW", Type: "Luxury", Year: 2023, Seats: 5, PricePerDay: 2000},
}

// flakyStore fails writes while failWrites is set.
type flakyStore struct {
	kvstore.Store
	mu         sync.Mutex
	failWrites bool
	writes     int
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("store unavailable")
	}
	s.writes++
	return s.Store.Set(ctx, key, value)
}

func (s *flakyStore) setFailing(fail bool) {
	s.mu.Lock()
	s.failWrites = fail
	s.mu.Unlock()
}

func (s *flakyStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var (
	fixedNow = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	pickup   = time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc       BookingService
	store     *flakyStore
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &flakyStore{Store: kvstore.NewMemory()}
	return newFixtureWithStore(t, store)
}

func newFixtureWithStore(t *testing.T, store *flakyStore) *fixture {
	t.Helper()
	log := logger.Discard()
	publisher := &recordingPublisher{}
	seq := 0
	svc := NewBookingService(
		repository.NewLedgerRepository(store, repository.DefaultLedgerKey, log),
		testCars,
		validator.NewBookingValidator(log),
		log,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() (string, error) {
			seq++
			return fmt.Sprintf("booking-%d", seq), nil
		}),
		WithPublisher(publisher),
	)
	svc.Load(context.Background())
	return &fixture{svc: svc, store: store, publisher: publisher}
}

func request(userID, carID string, days int) *model.BookingRequest {
	return &model.BookingRequest{
		UserID:          userID,
		CarID:           carID,
		PickupLocation:  "Bengaluru Airport",
		DropoffLocation: "MG Road",
		PickupDate:      pickup,
		ReturnDate:      pickup.Add(time.Duration(days) * 24 * time.Hour),
	}
}

func TestCreate_ComputesFrozenPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.Create(ctx, request("u1", "A", 3))
	require.NoError(t, err)

	assert.Equal(t, "booking-1", booking.ID)
	assert.Equal(t, 3000.0, booking.TotalPrice)
	assert.Equal(t, model.StatusConfirmed, booking.Status)
	assert.True(t, booking.CreatedAt.Equal(fixedNow))

	list := f.svc.GetBookingsForUser(ctx, "u1")
	require.Len(t, list, 1)
	assert.Equal(t, booking, list[0])
}

func TestCreate_PartialDayRoundsUp(t *testing.T) {
	f := newFixture(t)
	req := request("u1", "B", 1)
	req.ReturnDate = pickup.Add(25 * time.Hour)

	booking, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, booking.TotalPrice)
}

func TestCreate_QuotedTotal(t *testing.T) {
	tests := []struct {
		name    string
		quoted  float64
		wantErr bool
	}{
		{name: "matching quote accepted", quoted: 3000},
		{name: "stale quote rejected", quoted: 2000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := request("u1", "A", 3)
			req.TotalPrice = &tt.quoted

			_, err := f.svc.Create(context.Background(), req)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
			assert.Empty(t, f.svc.GetBookingsForUser(context.Background(), "u1"))
		})
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(r *model.BookingRequest)
		wantCode string
	}{
		{name: "return equals pickup", mutate: func(r *model.BookingRequest) { r.ReturnDate = r.PickupDate }, wantCode: apperrors.CodeValidation},
		{name: "return before pickup", mutate: func(r *model.BookingRequest) { r.ReturnDate = r.PickupDate.Add(-time.Hour) }, wantCode: apperrors.CodeValidation},
		{name: "blank pickup location", mutate: func(r *model.BookingRequest) { r.PickupLocation = " \t " }, wantCode: apperrors.CodeValidation},
		{name: "missing user", mutate: func(r *model.BookingRequest) { r.UserID = "" }, wantCode: apperrors.CodeValidation},
		{name: "unknown car", mutate: func(r *model.BookingRequest) { r.CarID = "Z" }, wantCode: apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := request("u1", "A", 2)
			tt.mutate(req)

			_, err := f.svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
			assert.Zero(t, f.store.writeCount(), "rejected requests must not write")
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestCreate_ValidationDetails(t *testing.T) {
	f := newFixture(t)
	req := request("u1", "A", 2)
	req.ReturnDate = req.PickupDate

	_, err := f.svc.Create(context.Background(), req)
	appErr := apperrors.AsAppError(err)
	fields, ok := appErr.Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "return_date")
}

func TestCreate_UniqueIDs(t *testing.T) {
	store := &flakyStore{Store: kvstore.NewMemory()}
	log := logger.Discard()
	svc := NewBookingService(
		repository.NewLedgerRepository(store, "", log),
		testCars,
		validator.NewBookingValidator(log),
		log,
	)
	svc.Load(context.Background())

	seen := map[string]bool{}
	for i := 0; i < 25; i++ {
		b, err := svc.Create(context.Background(), request(fmt.Sprintf("u%d", i%3), "A", 1+i%4))
		require.NoError(t, err)
		assert.False(t, seen[b.ID], "duplicate id %s", b.ID)
		seen[b.ID] = true
	}
}

func TestCancel_DeletesAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, request("u1", "A", 3))
	require.NoError(t, err)

	removed, err := f.svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, f.svc.GetBookingsForUser(ctx, "u1"))

	_, ok := f.svc.Get(ctx, b.ID)
	assert.False(t, ok)

	reloaded := newFixtureWithStore(t, f.store)
	assert.Empty(t, reloaded.svc.GetBookingsForUser(ctx, "u1"))

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, events.BookingCancelled, f.publisher.events[1].Type)
	assert.Equal(t, model.StatusCancelled, f.publisher.events[1].Booking.Status)
}

func TestCancel_UnknownIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, request("u1", "A", 1))
	require.NoError(t, err)
	writes := f.store.writeCount()

	removed, err := f.svc.Cancel(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, writes, f.store.writeCount(), "no-op cancel must not write")
	assert.Len(t, f.svc.GetBookingsForUser(ctx, "u1"), 1)
}

func TestUpdate_ReplacesWholesale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, request("u1", "A", 3))
	require.NoError(t, err)

	replacement := b
	replacement.DropoffLocation = "Whitefield"
	replacement.ReturnDate = pickup.Add(5 * 24 * time.Hour)
	replacement.TotalPrice = 5000
	replacement.Status = model.StatusCompleted
	replacement.CreatedAt = fixedNow.Add(time.Hour)

	updated, err := f.svc.Update(ctx, replacement)
	require.NoError(t, err)
	assert.True(t, updated)

	got, ok := f.svc.Get(ctx, b.ID)
	require.True(t, ok)
	assert.Equal(t, "Whitefield", got.DropoffLocation)
	assert.Equal(t, 5000.0, got.TotalPrice)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.True(t, got.CreatedAt.Equal(b.CreatedAt), "createdAt is set once")

	reloaded := newFixtureWithStore(t, f.store)
	persisted, ok := reloaded.svc.Get(ctx, b.ID)
	require.True(t, ok)
	assert.Equal(t, "Whitefield", persisted.DropoffLocation)
}

func TestUpdate_UnknownIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.svc.Update(ctx, model.Booking{ID: "missing"})
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Zero(t, f.store.writeCount())
}

func TestUpdate_RejectsInvalidReplacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, request("u1", "A", 3))
	require.NoError(t, err)

	bad := b
	bad.ReturnDate = bad.PickupDate.Add(-time.Hour)
	_, err = f.svc.Update(ctx, bad)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	bad = b
	bad.Status = "pending"
	_, err = f.svc.Update(ctx, bad)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	got, _ := f.svc.Get(ctx, b.ID)
	assert.Equal(t, b, got)
}

func TestMutations_WriteThenCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, request("u1", "A", 3))
	require.NoError(t, err)

	f.store.setFailing(true)

	_, err = f.svc.Create(ctx, request("u1", "B", 1))
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))
	assert.Len(t, f.svc.GetBookingsForUser(ctx, "u1"), 1)

	_, err = f.svc.Cancel(ctx, b.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))
	_, ok := f.svc.Get(ctx, b.ID)
	assert.True(t, ok, "failed cancel must keep the booking")

	replacement := b
	replacement.PickupLocation = "Elsewhere"
	_, err = f.svc.Update(ctx, replacement)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence))
	got, _ := f.svc.Get(ctx, b.ID)
	assert.Equal(t, b.PickupLocation, got.PickupLocation)

	assert.Len(t, f.publisher.events, 1, "failed mutations publish nothing")

	f.store.setFailing(false)
	_, err = f.svc.Create(ctx, request("u1", "B", 1))
	require.NoError(t, err)
	assert.Len(t, f.svc.GetBookingsForUser(ctx, "u1"), 2)
}

func TestPublishFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	b, err := f.svc.Create(context.Background(), request("u1", "A", 1))
	require.NoError(t, err)

	_, ok := f.svc.Get(context.Background(), b.ID)
	assert.True(t, ok)
}

func TestGetBookingsForUser_OrderAndIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var want []string
	for i, user := range []string{"u1", "u2", "u1", "u1", "u2"} {
		b, err := f.svc.Create(ctx, request(user, "A", 1+i))
		require.NoError(t, err)
		if user == "u1" {
			want = append(want, b.ID)
		}
	}

	var got []string
	for _, b := range f.svc.GetBookingsForUser(ctx, "u1") {
		assert.Equal(t, "u1", b.UserID)
		got = append(got, b.ID)
	}
	assert.Equal(t, want, got)
	assert.Empty(t, f.svc.GetBookingsForUser(ctx, "nobody"))
}

func TestLoad_RecoversLedger(t *testing.T) {
	store := &flakyStore{Store: kvstore.NewMemory()}
	first := newFixtureWithStore(t, store)
	ctx := context.Background()

	b1, err := first.svc.Create(ctx, request("u1", "A", 2))
	require.NoError(t, err)
	b2, err := first.svc.Create(ctx, request("u1", "B", 4))
	require.NoError(t, err)

	second := newFixtureWithStore(t, store)
	got := second.svc.GetBookingsForUser(ctx, "u1")
	require.Len(t, got, 2)
	assert.Equal(t, b1.ID, got[0].ID)
	assert.Equal(t, b2.ID, got[1].ID)
	assert.True(t, b2.PickupDate.Equal(got[1].PickupDate))
	assert.Equal(t, b2.TotalPrice, got[1].TotalPrice)
}

func TestLoad_MalformedStartsEmpty(t *testing.T) {
	store := &flakyStore{Store: kvstore.NewMemory()}
	require.NoError(t, store.Store.Set(context.Background(), repository.DefaultLedgerKey, "[{oops"))

	f := newFixtureWithStore(t, store)
	assert.Empty(t, f.svc.GetBookingsForUser(context.Background(), "u1"))

	_, err := f.svc.Create(context.Background(), request("u1", "A", 1))
	require.NoError(t, err)
}

func TestGetCar(t *testing.T) {
	f := newFixture(t)

	car, ok := f.svc.GetCar("B")
	assert.True(t, ok)
	assert.Equal(t, 2000.0, car.PricePerDay)

	_, ok = f.svc.GetCar("dangling")
	assert.False(t, ok)
}

func TestConcurrentCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Create(ctx, request("u1", "A", 1+i%5))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.svc.GetBookingsForUser(ctx, "u1"), 20)

	reloaded := newFixtureWithStore(t, f.store)
	assert.Len(t, reloaded.svc.GetBookingsForUser(ctx, "u1"), 20, "every committed create is persisted")
}

func TestCreate_UnknownCarWrapsSentinel(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), request("u1", "Z", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogerrors.ErrCarNotFound)
	assert.Equal(t, 0, f.store.writeCount())
}

func TestCreate_UnpersistableYearKeepsLedgerReadable(t *testing.T) {
	store := &flakyStore{Store: kvstore.NewMemory()}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()

	kept, err := f.svc.Create(ctx, request("u1", "A", 2))
	require.NoError(t, err)

	far := request("u1", "A", 2)
	far.PickupDate = time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)
	far.ReturnDate = far.PickupDate.Add(48 * time.Hour)
	_, err = f.svc.Create(ctx, far)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
	fields, ok := apperrors.AsAppError(err).Details["fields"].(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "pickup_date")

	reloaded := newFixtureWithStore(t, store)
	got := reloaded.svc.GetBookingsForUser(ctx, "u1")
	require.Len(t, got, 1)
	assert.Equal(t, kept.ID, got[0].ID)
}

func TestCreate_EncodeFailureIsPersistenceError(t *testing.T) {
	store := &flakyStore{Store: kvstore.NewMemory()}
	log := logger.Discard()
	svc := NewBookingService(
		repository.NewLedgerRepository(store, repository.DefaultLedgerKey, log),
		testCars,
		validator.NewBookingValidator(log),
		log,
		WithClock(func() time.Time { return time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)
	ctx := context.Background()
	svc.Load(ctx)

	_, err := svc.Create(ctx, request("u1", "A", 2))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePersistence), "got %v", err)
	assert.Empty(t, svc.GetBookingsForUser(ctx, "u1"))
	assert.Zero(t, store.writeCount())
}
