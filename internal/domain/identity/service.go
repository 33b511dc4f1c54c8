package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/access"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/db"
	"github.com/ehr/portal/internal/platform/events"
	"github.com/ehr/portal/internal/platform/validation"
)

// maxSearchCandidates bounds how many patients a search loads before filtering.
const maxSearchCandidates = 500

type Service struct {
	accounts    AccountRepository
	patients    PatientRepository
	doctors     DoctorRepository
	tx          db.TxRunner
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	hub         *events.Hub
	now         func() time.Time
}

type ServiceDeps struct {
	Accounts    AccountRepository
	Patients    PatientRepository
	Doctors     DoctorRepository
	Tx          db.TxRunner
	Hasher      *auth.PasswordHasher
	Tokens      *auth.TokenIssuer
	Revocations auth.RevocationStore
	Hub         *events.Hub
}

func NewService(d ServiceDeps) *Service {
	if d.Tx == nil {
		d.Tx = db.NoopTxRunner{}
	}
	if d.Hub == nil {
		d.Hub = events.NewHub()
	}
	return &Service{
		accounts:    d.Accounts,
		patients:    d.Patients,
		doctors:     d.Doctors,
		tx:          d.Tx,
		hasher:      d.Hasher,
		tokens:      d.Tokens,
		revocations: d.Revocations,
		hub:         d.Hub,
		now:         time.Now,
	}
}

// -- Session --

// SignUp creates an account and its patient or doctor record in one
// transaction. The role defaults to patient.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Account, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("look up account: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	fullName := req.FullName
	if fullName == "" {
		fullName, _, _ = strings.Cut(req.Email, "@")
	}
	acct := &Account{Email: req.Email, PasswordHash: hash, Role: role, FullName: fullName}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Create(ctx, acct); err != nil {
			return err
		}
		switch role {
		case auth.RoleDoctor:
			return s.doctors.Create(ctx, &Doctor{AccountID: &acct.ID, Name: fullName, Email: acct.Email})
		default:
			first, last := splitName(fullName)
			return s.patients.Create(ctx, &Patient{AccountID: &acct.ID, FirstName: first, LastName: last, Email: acct.Email})
		}
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return acct, nil
}

// SignIn verifies credentials and issues a session token. Unknown emails
// and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetByEmail(ctx, req.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}
	if err := s.hasher.Compare(acct.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, claims, err := s.tokens.Issue(acct.ID.String(), acct.Email, acct.Role)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.accounts.TouchSignIn(ctx, acct.ID, now); err != nil {
		return nil, fmt.Errorf("record sign-in: %w", err)
	}

	sess := auth.Authenticated(claims)
	s.hub.Publish(ctx, events.Event{
		Type:      events.TypeSignedIn,
		Topic:     events.SessionTopic(sess.AccountID),
		AccountID: sess.AccountID,
		Role:      string(sess.Role),
		Timestamp: now,
	})
	return &SignInResult{Token: token, Session: sess}, nil
}

// SignOut revokes the session's token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, sess auth.Session) error {
	if !sess.IsAuthenticated() {
		return nil
	}
	if err := s.revocations.Revoke(ctx, sess.TokenID, sess.AccountID, sess.ExpiresAt); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.hub.Publish(ctx, events.Event{
		Type:      events.TypeSignedOut,
		Topic:     events.SessionTopic(sess.AccountID),
		AccountID: sess.AccountID,
		Role:      string(sess.Role),
		Timestamp: s.now().UTC(),
	})
	return nil
}

// CurrentSession returns the session resolved for this request.
func (s *Service) CurrentSession(ctx context.Context) auth.Session {
	return auth.SessionFromContext(ctx)
}

// Subscribe delivers every session change until unsubscribe is called.
// Events are dropped for a subscriber that falls behind.
func (s *Service) Subscribe() (<-chan events.Event, func()) {
	sub := s.hub.Subscribe()
	return sub.C, sub.Close
}

// -- Patient --

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByAccount(ctx context.Context, accountID uuid.UUID) (*Patient, error) {
	return s.patients.GetByAccountID(ctx, accountID)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FirstName) == "" {
		return &validation.Error{Field: "first_name", Message: "first_name is required"}
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// SearchPatients filters the most recent patients by name, email or id.
func (s *Service) SearchPatients(ctx context.Context, query string) ([]PatientSummary, error) {
	if strings.TrimSpace(query) == "" {
		return []PatientSummary{}, nil
	}
	candidates, err := s.patients.ListRecent(ctx, maxSearchCandidates)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	return Summarize(FilterPatients(candidates, query), s.now()), nil
}

// -- Doctor --

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetDoctorByAccount(ctx context.Context, accountID uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByAccountID(ctx, accountID)
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	if strings.TrimSpace(d.Name) == "" {
		return &validation.Error{Field: "name", Message: "name is required"}
	}
	return s.doctors.Update(ctx, d)
}

// -- access.Resolver --

func (s *Service) PatientIDForAccount(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	p, err := s.patients.GetByAccountID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, access.ErrNoProfile
	}
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

func (s *Service) DoctorIDForAccount(ctx context.Context, accountID uuid.UUID) (uuid.UUID, error) {
	d, err := s.doctors.GetByAccountID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return uuid.Nil, access.ErrNoProfile
	}
	if err != nil {
		return uuid.Nil, err
	}
	return d.ID, nil
}

func (s *Service) PatientExists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	_, err := s.patients.GetByID(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

var _ access.Directory = (*Service)(nil)
