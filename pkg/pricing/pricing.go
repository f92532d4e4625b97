// Package pricing computes rental duration and cost. The same function backs
// live quotes and the price frozen on a booking, so both always agree.
package pricing

import (
	"time"

	"carrental/pkg/model"
)

const Day = 24 * time.Hour

// Days returns the number of started 24h periods between pickup and return.
// Any fraction of a day counts as a full day. The result is zero or negative
// when returnDate is not after pickupDate; callers must reject that case.
func Days(pickupDate, returnDate time.Time) int {
	d := returnDate.Sub(pickupDate)
	days := d / Day
	if d%Day > 0 {
		days++
	}
	return int(days)
}

func Quote(pickupDate, returnDate time.Time, pricePerDay float64) model.Quote {
	days := Days(pickupDate, returnDate)
	return model.Quote{
		Days:        days,
		PricePerDay: pricePerDay,
		Total:       float64(days) * pricePerDay,
	}
}
