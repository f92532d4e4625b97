package model

import (
	"time"
)

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Booking struct {
	ID              string        `json:"id" validate:"required"`
	UserID          string        `json:"user_id" validate:"required"`
	CarID           string        `json:"car_id" validate:"required"`
	PickupLocation  string        `json:"pickup_location" validate:"required,max=300"`
	DropoffLocation string        `json:"dropoff_location" validate:"required,max=300"`
	PickupDate      time.Time     `json:"pickup_date" validate:"required"`
	ReturnDate      time.Time     `json:"return_date" validate:"required,gtfield=PickupDate"`
	TotalPrice      float64       `json:"total_price" validate:"gte=0"`
	Status          BookingStatus `json:"status" validate:"required,oneof=confirmed cancelled completed"`
	CreatedAt       time.Time     `json:"created_at"`
}

// BookingRequest is the input to booking creation. TotalPrice is the quote the
// caller showed the user; when nil the price is computed from the catalog.
type BookingRequest struct {
	UserID          string    `json:"user_id" validate:"required"`
	CarID           string    `json:"car_id" validate:"required"`
	PickupLocation  string    `json:"pickup_location" validate:"required,max=300"`
	DropoffLocation string    `json:"dropoff_location" validate:"required,max=300"`
	PickupDate      time.Time `json:"pickup_date" validate:"required"`
	ReturnDate      time.Time `json:"return_date" validate:"required,gtfield=PickupDate"`
	TotalPrice      *float64  `json:"total_price,omitempty" validate:"omitempty,gt=0"`
}

// Quote is the (days, total) pair for a prospective booking.
type Quote struct {
	Days        int     `json:"days"`
	PricePerDay float64 `json:"price_per_day"`
	Total       float64 `json:"total"`
}
