package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"carrental/pkg/logger"
	"carrental/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Fields maps each offending field to its message, for error details.
func (v ValidationErrors) Fields() map[string]string {
	fields := make(map[string]string, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return fields
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("not_blank", validateNotBlank); err != nil {
		log.Fatal("Failed to register 'not_blank' validator",
			"error", err,
		)
	}

	log.Debug("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateRequest checks a booking creation request: every text field present
// and the return strictly after the pickup.
func (v *BookingValidator) ValidateRequest(req *model.BookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		return v.translate(err)
	}
	if errs := v.checkText(map[string]string{
		"user_id":          req.UserID,
		"car_id":           req.CarID,
		"pickup_location":  req.PickupLocation,
		"dropoff_location": req.DropoffLocation,
	}); len(errs) > 0 {
		return errs
	}
	return checkTimeRange(req.PickupDate, req.ReturnDate)
}

// Validate checks a complete booking, as used for wholesale replacement.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		return v.translate(err)
	}
	if errs := v.checkText(map[string]string{
		"id":               booking.ID,
		"user_id":          booking.UserID,
		"car_id":           booking.CarID,
		"pickup_location":  booking.PickupLocation,
		"dropoff_location": booking.DropoffLocation,
	}); len(errs) > 0 {
		return errs
	}
	return checkTimeRange(booking.PickupDate, booking.ReturnDate)
}

func (v *BookingValidator) checkText(fields map[string]string) ValidationErrors {
	var errs ValidationErrors
	for _, name := range []string{"id", "user_id", "car_id", "pickup_location", "dropoff_location"} {
		value, ok := fields[name]
		if !ok {
			continue
		}
		if err := v.validate.Var(value, "not_blank"); err != nil {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("%s cannot be blank", name),
			})
		}
	}
	return errs
}

// Dates outside these years have no RFC 3339 form and cannot be persisted.
const (
	minYear = 0
	maxYear = 9999
)

func checkTimeRange(pickup, ret time.Time) error {
	var errs ValidationErrors
	for _, d := range []struct {
		field string
		value time.Time
	}{{"pickup_date", pickup}, {"return_date", ret}} {
		if y := d.value.Year(); y < minYear || y > maxYear {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Message: fmt.Sprintf("%s year must be between %04d and %d", d.field, minYear, maxYear),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	if !ret.After(pickup) {
		return ValidationErrors{
			ValidationError{
				Field:   "return_date",
				Message: "return_date must be after pickup_date",
			},
		}
	}
	return nil
}

func (v *BookingValidator) translate(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return v.translateValidationErrors(validationErrs)
	}
	return err
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after pickup_date", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
