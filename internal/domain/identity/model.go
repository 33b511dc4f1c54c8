package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/auth"
)

// Account is a sign-in identity. Every account owns exactly one patient or
// doctor record, chosen by Role.
type Account struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         auth.Role  `db:"role" json:"role"`
	FullName     string     `db:"full_name" json:"full_name"`
	LastSignIn   *time.Time `db:"last_sign_in" json:"last_sign_in,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Patient maps to the patients table.
type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AccountID        *uuid.UUID `db:"account_id" json:"account_id,omitempty"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	Email            string     `db:"email" json:"email"`
	Phone            *string    `db:"phone" json:"phone,omitempty"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address          *string    `db:"address" json:"address,omitempty"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	BloodGroup       *string    `db:"blood_group" json:"blood_group,omitempty"`
	Allergies        *string    `db:"allergies" json:"allergies,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AccountID      *uuid.UUID `db:"account_id" json:"account_id,omitempty"`
	Name           string     `db:"name" json:"name"`
	Email          string     `db:"email" json:"email"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Specialization *string    `db:"specialization" json:"specialization,omitempty"`
	LicenseNumber  *string    `db:"license_number" json:"license_number,omitempty"`
	Experience     *string    `db:"experience" json:"experience,omitempty"`
	Hospital       *string    `db:"hospital" json:"hospital,omitempty"`
	Department     *string    `db:"department" json:"department,omitempty"`
	Bio            *string    `db:"bio" json:"bio,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// SignUpRequest is the sign-up form.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=doctor patient"`
	FullName string `json:"full_name" validate:"max=200"`
}

// SignInRequest is the sign-in form.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignInResult is returned on a successful sign-in. Token is also set as the
// session cookie by the handler.
type SignInResult struct {
	Token   string       `json:"token"`
	Session auth.Session `json:"session"`
}

// PatientSummary is one row of the find-patient results.
type PatientSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Age        *int      `json:"age,omitempty"`
	BloodGroup string    `json:"blood_group,omitempty"`
}

// Age returns whole years between dob and now, or nil when dob is unknown.
func Age(dob *time.Time, now time.Time) *int {
	if dob == nil {
		return nil
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return &years
}

// splitName turns "Jane Q Public" into ("Jane", "Q Public").
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
