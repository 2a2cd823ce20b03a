package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required,notblank" example:"Kitchen Redesign"`
	Description string `json:"description" binding:"required,notblank" example:"Full refit of the ground floor kitchen"`
}

type PostMessageRequest struct {
	Text string `json:"text" example:"Here are the photos of the wall"`
}

type EditMessageRequest struct {
	Text string `json:"text" example:"Updated wording"`
}

// MeasurementValue accepts a JSON number or string. Forms send strings.
type MeasurementValue string

func (v *MeasurementValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = MeasurementValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("measurement value must be a number or string: %w", err)
	}
	*v = MeasurementValue(n.String())
	return nil
}

type DimensionInput struct {
	Value MeasurementValue `json:"value" swaggertype:"string" example:"2450"`
	Label string           `json:"label" example:"Wall 1"`
	Notes string           `json:"notes,omitempty" example:"Behind the radiator"`
}

type AddDimensionsRequest struct {
	Dimensions []DimensionInput `json:"dimensions"`
}

type SignupRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	DisplayName     string `json:"display_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type GoogleSignInRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ContactRequest is validated by the contact service, which words its own
// errors for the form.
type ContactRequest struct {
	FirstName string `json:"firstname" example:"Ada"`
	Email     string `json:"email" example:"ada@example.com"`
	Message   string `json:"message" example:"Do you take on loft conversions?"`
}

type CheckoutRequest struct {
	// Amount in minor currency units. Defaults to the project's price.
	Amount int64 `json:"amount,omitempty" binding:"omitempty,gt=0" example:"500"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
