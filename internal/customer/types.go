package customer

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Customer represents a shop customer, keyed by phone number.
type Customer struct {
	ID           string     `json:"id"`
	Phone        string     `json:"phone"`
	Name         string     `json:"name"`
	VehicleMake  string     `json:"vehicle_make,omitempty"`
	VehicleModel string     `json:"vehicle_model,omitempty"`
	VehicleYear  string     `json:"vehicle_year,omitempty"`
	LastVisit    *time.Time `json:"last_visit,omitempty"`
	TotalVisits  int        `json:"total_visits"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

const maxNameLength = 100

// phoneRegex accepts E.164-style numbers: optional leading +, 7-15 digits.
var phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// NormalisePhone strips spaces, hyphens and parentheses from a phone number.
func NormalisePhone(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(strings.TrimSpace(phone))
}

// ValidatePhone checks a (normalised) phone number against the E.164-style
// format.
func ValidatePhone(phone string) error {
	if phone == "" {
		return fmt.Errorf("%w: phone cannot be empty", ErrInvalidPhone)
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	return nil
}

// ValidateName checks if a customer name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// Validate validates a customer before persistence. The phone is normalised
// in place.
func (c *Customer) Validate() error {
	c.Phone = NormalisePhone(c.Phone)
	if err := ValidatePhone(c.Phone); err != nil {
		return err
	}
	return ValidateName(c.Name)
}
