package validation

import (
	"errors"
	"testing"
)

type medicationInput struct {
	Name      string `json:"name" validate:"notblank"`
	Frequency string `json:"frequency" validate:"omitempty,oneof=once-daily twice-daily"`
}

type formInput struct {
	Email       string            `json:"email" validate:"required,email"`
	Password    string            `json:"password" validate:"required,min=6"`
	Date        string            `json:"date" validate:"required,isodate"`
	Severity    string            `json:"severity" validate:"oneof=mild moderate severe critical"`
	Medications []medicationInput `json:"medications" validate:"min=1,dive"`
}

func validForm() formInput {
	return formInput{
		Email:       "jane@example.com",
		Password:    "secret1",
		Date:        "2026-01-02",
		Severity:    "mild",
		Medications: []medicationInput{{Name: "Lisinopril 10mg"}},
	}
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(validForm()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStruct_Messages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *formInput)
		field  string
		msg    string
	}{
		{"missing email", func(f *formInput) { f.Email = "" }, "email", "email is required"},
		{"bad email", func(f *formInput) { f.Email = "nope" }, "email", "email must be a valid email address"},
		{"short password", func(f *formInput) { f.Password = "abc" }, "password", "password must be at least 6 characters"},
		{"bad date", func(f *formInput) { f.Date = "02/01/2026" }, "date", "date must be a date in YYYY-MM-DD format"},
		{"bad severity", func(f *formInput) { f.Severity = "fatal" }, "severity", "severity must be one of: mild, moderate, severe, critical"},
		{"no medications", func(f *formInput) { f.Medications = nil }, "medications", "medications must have at least 1 entries"},
		{"blank medication", func(f *formInput) { f.Medications[0].Name = "   " }, "medications[0].name", "medications[0].name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)
			err := Struct(f)
			var ve *Error
			if !errors.As(err, &ve) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
			if ve.Message != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, ve.Message)
			}
			if !IsValidationError(err) {
				t.Error("expected IsValidationError to be true")
			}
		})
	}
}
