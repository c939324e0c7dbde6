package checkout

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/safar/go-storefront/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NormalizeCustomer trims every field.
func NormalizeCustomer(c models.CustomerInfo) models.CustomerInfo {
	c.FullName = strings.TrimSpace(c.FullName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.State = strings.TrimSpace(c.State)
	c.ZipCode = strings.TrimSpace(c.ZipCode)
	c.Country = strings.TrimSpace(c.Country)
	return c
}

func ValidateCustomer(c models.CustomerInfo) error {
	required := []struct {
		field string
		value string
	}{
		{"full_name", c.FullName},
		{"email", c.Email},
		{"phone", c.Phone},
		{"address", c.Address},
		{"city", c.City},
		{"state", c.State},
		{"zip_code", c.ZipCode},
		{"country", c.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "is required"}
		}
	}

	if _, err := mail.ParseAddress(c.Email); err != nil {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return nil
}
