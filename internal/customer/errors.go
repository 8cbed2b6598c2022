package customer

import "errors"

var (
	// ErrNotFound is returned when a customer ID or phone does not exist.
	ErrNotFound = errors.New("customer not found")

	// ErrPhoneExists is returned when creating a customer with a phone
	// number that is already registered.
	ErrPhoneExists = errors.New("phone number already registered")

	// ErrInvalidPhone is returned when a phone number fails validation.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrInvalidName is returned when a customer name fails validation.
	ErrInvalidName = errors.New("invalid customer name")
)
