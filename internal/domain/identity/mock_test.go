package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/events"
)

type mockAccountRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Account
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{store: make(map[uuid.UUID]*Account)}
}

func (m *mockAccountRepo) Create(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if strings.EqualFold(existing.Email, a.Email) {
			return ErrEmailTaken
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	m.store[a.ID] = a
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockAccountRepo) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.store {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAccountRepo) TouchSignIn(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	a.LastSignIn = &at
	return nil
}

type mockPatientRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{store: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.store[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) GetByAccountID(_ context.Context, accountID uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.AccountID != nil && *p.AccountID == accountID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[p.ID]; !ok {
		return ErrNotFound
	}
	m.store[p.ID] = p
	return nil
}

func (m *mockPatientRepo) sorted() []*Patient {
	out := make([]*Patient, 0, len(m.store))
	for _, p := range m.store {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockPatientRepo) ListRecent(_ context.Context, limit int) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type mockDoctorRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{store: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	m.store[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *mockDoctorRepo) GetByAccountID(_ context.Context, accountID uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.store {
		if d.AccountID != nil && *d.AccountID == accountID {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[d.ID]; !ok {
		return ErrNotFound
	}
	m.store[d.ID] = d
	return nil
}

type testDeps struct {
	accounts    *mockAccountRepo
	patients    *mockPatientRepo
	doctors     *mockDoctorRepo
	revocations *auth.MemoryRevocationStore
	tokens      *auth.TokenIssuer
	hub         *events.Hub
}

func newTestServiceWithDeps() (*Service, *testDeps) {
	d := &testDeps{
		accounts:    newMockAccountRepo(),
		patients:    newMockPatientRepo(),
		doctors:     newMockDoctorRepo(),
		revocations: auth.NewMemoryRevocationStore(),
		tokens:      auth.NewTokenIssuer([]byte("test-secret-test-secret-test-secret"), time.Hour),
		hub:         events.NewHub(),
	}
	svc := NewService(ServiceDeps{
		Accounts:    d.accounts,
		Patients:    d.patients,
		Doctors:     d.doctors,
		Hasher:      auth.NewPasswordHasher(4),
		Tokens:      d.tokens,
		Revocations: d.revocations,
		Hub:         d.hub,
	})
	return svc, d
}

func newTestService() *Service {
	svc, _ := newTestServiceWithDeps()
	return svc
}
