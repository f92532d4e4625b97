package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	bookingerrors "carrental/internal/bookings/errors"
	"carrental/internal/bookings/service"
	catalogerrors "carrental/internal/catalog/errors"
	"carrental/pkg/confirm"
	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/identity"
	"carrental/pkg/logger"
	"carrental/pkg/model"
	"carrental/pkg/pricing"

	"github.com/julienschmidt/httprouter"
)

const DefaultMaxBodyBytes = 1 << 20

// BookingView is a booking with its car joined in. Car is null when the
// booking references a car no longer in the catalog.
type BookingView struct {
	model.Booking
	Car *model.Car `json:"car"`
}

// CreateBookingRequest is the POST body. The user comes from the caller's
// identity, never from the body.
type CreateBookingRequest struct {
	CarID           string    `json:"car_id"`
	PickupLocation  string    `json:"pickup_location"`
	DropoffLocation string    `json:"dropoff_location"`
	PickupDate      time.Time `json:"pickup_date"`
	ReturnDate      time.Time `json:"return_date"`
	TotalPrice      *float64  `json:"total_price,omitempty"`
}

// UpdateBookingRequest is the PUT body. Omitted fields keep their current
// value; a new car or new dates re-price the booking.
type UpdateBookingRequest struct {
	CarID           *string              `json:"car_id,omitempty"`
	PickupLocation  *string              `json:"pickup_location,omitempty"`
	DropoffLocation *string              `json:"dropoff_location,omitempty"`
	PickupDate      *time.Time           `json:"pickup_date,omitempty"`
	ReturnDate      *time.Time           `json:"return_date,omitempty"`
	Status          *model.BookingStatus `json:"status,omitempty"`
}

type BookingHandler struct {
	service      service.BookingService
	confirmer    confirm.Confirmer
	maxBodyBytes int64
	log          *logger.Logger
}

func NewBookingHandler(service service.BookingService, confirmer confirm.Confirmer, maxBodyBytes int64, log *logger.Logger) *BookingHandler {
	if confirmer == nil {
		confirmer = confirm.NewDelay(0)
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &BookingHandler{
		service:      service,
		confirmer:    confirmer,
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := identity.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}

	var body CreateBookingRequest
	if err := httputil.DecodeJSON(w, r, h.maxBodyBytes, &body); err != nil {
		h.writeError(w, err, "Create")
		return
	}

	if err := h.confirmer.Confirm(r.Context()); err != nil {
		h.log.Warn("Booking confirmation did not complete", "user_id", user.ID, "error", err)
		h.writeError(w, confirmationError(err), "Create")
		return
	}

	booking, err := h.service.Create(r.Context(), &model.BookingRequest{
		UserID:          user.ID,
		CarID:           body.CarID,
		PickupLocation:  body.PickupLocation,
		DropoffLocation: body.DropoffLocation,
		PickupDate:      body.PickupDate,
		ReturnDate:      body.ReturnDate,
		TotalPrice:      body.TotalPrice,
	})
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}

	if err := httputil.WriteCreated(w, h.view(booking)); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func confirmationError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Unavailable("Booking confirmation")
	}
	return apperrors.Validation("Booking was not confirmed", map[string]any{"reason": err.Error()})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := identity.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, err, "List")
		return
	}

	bookings := h.service.GetBookingsForUser(r.Context(), user.ID)
	views := make([]BookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, h.view(b))
	}

	if err := httputil.WriteList(w, views, len(views)); err != nil {
		h.log.Error("failed to write list response", "handler", "List", "operation", "WriteList", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.owned(r, ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "GetByID")
		return
	}

	if err := httputil.WriteSuccess(w, h.view(booking)); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	current, err := h.owned(r, ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "Update")
		return
	}

	var body UpdateBookingRequest
	if err := httputil.DecodeJSON(w, r, h.maxBodyBytes, &body); err != nil {
		h.writeError(w, err, "Update")
		return
	}

	replacement, err := h.applyUpdate(current, body)
	if err != nil {
		h.writeError(w, err, "Update")
		return
	}

	updated, err := h.service.Update(r.Context(), replacement)
	if err != nil {
		h.writeError(w, err, "Update")
		return
	}
	if !updated {
		// cancelled concurrently
		h.writeError(w, apperrors.NotFoundWithID("Booking", current.ID).WithCause(bookingerrors.ErrNotFound), "Update")
		return
	}

	stored, ok := h.service.Get(r.Context(), current.ID)
	if !ok {
		h.writeError(w, apperrors.NotFoundWithID("Booking", current.ID).WithCause(bookingerrors.ErrNotFound), "Update")
		return
	}
	if err := httputil.WriteSuccess(w, h.view(stored)); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

// applyUpdate merges body into current. Changing the car or the dates
// re-prices the booking at the catalog rate.
func (h *BookingHandler) applyUpdate(current model.Booking, body UpdateBookingRequest) (model.Booking, error) {
	next := current
	reprice := false

	if body.CarID != nil && *body.CarID != current.CarID {
		next.CarID = *body.CarID
		reprice = true
	}
	if body.PickupDate != nil && !body.PickupDate.Equal(current.PickupDate) {
		next.PickupDate = *body.PickupDate
		reprice = true
	}
	if body.ReturnDate != nil && !body.ReturnDate.Equal(current.ReturnDate) {
		next.ReturnDate = *body.ReturnDate
		reprice = true
	}
	if body.PickupLocation != nil {
		next.PickupLocation = *body.PickupLocation
	}
	if body.DropoffLocation != nil {
		next.DropoffLocation = *body.DropoffLocation
	}
	if body.Status != nil {
		next.Status = *body.Status
	}

	if reprice {
		car, ok := h.service.GetCar(next.CarID)
		if !ok {
			return model.Booking{}, apperrors.NotFoundWithID("Car", next.CarID).WithCause(catalogerrors.ErrCarNotFound)
		}
		if next.ReturnDate.After(next.PickupDate) {
			next.TotalPrice = pricing.Quote(next.PickupDate, next.ReturnDate, car.PricePerDay).Total
		}
	}

	return next, nil
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, err := identity.RequireUser(r.Context())
	if err != nil {
		h.writeError(w, err, "Cancel")
		return
	}

	id := ps.ByName("id")
	if booking, ok := h.service.Get(r.Context(), id); ok {
		if booking.UserID != user.ID {
			h.writeError(w, apperrors.NotFoundWithID("Booking", id).WithCause(bookingerrors.ErrNotFound), "Cancel")
			return
		}
		if _, err := h.service.Cancel(r.Context(), id); err != nil {
			h.writeError(w, err, "Cancel")
			return
		}
	}

	httputil.WriteNoContent(w)
}

// owned returns the booking when it belongs to the current user. Other
// users' bookings are reported as missing.
func (h *BookingHandler) owned(r *http.Request, id string) (model.Booking, error) {
	user, err := identity.RequireUser(r.Context())
	if err != nil {
		return model.Booking{}, err
	}

	booking, ok := h.service.Get(r.Context(), id)
	if !ok || booking.UserID != user.ID {
		return model.Booking{}, apperrors.NotFoundWithID("Booking", id).WithCause(bookingerrors.ErrNotFound)
	}
	return booking, nil
}

func (h *BookingHandler) view(b model.Booking) BookingView {
	v := BookingView{Booking: b}
	if car, ok := h.service.GetCar(b.CarID); ok {
		v.Car = &car
	}
	return v
}

func (h *BookingHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PUT("/api/v1/bookings/id/:id", h.Update)
	router.DELETE("/api/v1/bookings/id/:id", h.Cancel)
}
