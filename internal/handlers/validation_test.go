package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequest_UzPhoneTag(t *testing.T) {
	type form struct {
		Phone string `validate:"required,uzphone"`
	}

	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{"valid number", "+998901234567", true},
		{"too few digits", "+99890123456", false},
		{"too many digits", "+9989012345678", false},
		{"missing plus", "998901234567", false},
		{"wrong country code", "+7901234567", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fieldErrors := ValidateRequest(form{Phone: tt.phone})
			if tt.valid {
				assert.Empty(t, fieldErrors)
			} else {
				assert.NotEmpty(t, fieldErrors)
			}
		})
	}
}

func TestValidateRequest_ReportsEveryBadField(t *testing.T) {
	// A form with five independent problems reports all five, not just
	// the first.
	req := SubmitOrderRequest{
		Phone:          "+99890123456",
		SelectedGame:   "pubg",
		SelectedDesign: "logo",
	}

	fieldErrors := ValidateRequest(req)

	fields := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		fields[fe.Field] = fe.Message
	}

	assert.Len(t, fieldErrors, 5)
	assert.Contains(t, fields, "FirstName")
	assert.Contains(t, fields, "LastName")
	assert.Contains(t, fields, "TelegramUsername")
	assert.Contains(t, fields, "Comment")
	assert.Contains(t, fields, "Phone")
	assert.Contains(t, fields["Phone"], "+998XXXXXXXXX")
}

func TestValidateRequest_MessagesNameTheField(t *testing.T) {
	type form struct {
		Code string `validate:"required,len=6"`
	}

	fieldErrors := ValidateRequest(form{})
	assert.Len(t, fieldErrors, 1)
	assert.Equal(t, "Code", fieldErrors[0].Field)
	assert.Contains(t, fieldErrors[0].Message, "required")

	fieldErrors = ValidateRequest(form{Code: "123"})
	assert.Len(t, fieldErrors, 1)
	assert.Contains(t, fieldErrors[0].Message, "exactly 6 characters")
}

func TestValidateRequest_CoordinateTags(t *testing.T) {
	type coords struct {
		Lat float64 `validate:"latitude"`
		Lng float64 `validate:"longitude"`
	}

	assert.Empty(t, ValidateRequest(coords{Lat: 41.3, Lng: 69.2}))
	assert.NotEmpty(t, ValidateRequest(coords{Lat: 91, Lng: 69.2}))
	assert.NotEmpty(t, ValidateRequest(coords{Lat: 41.3, Lng: 181}))
}
