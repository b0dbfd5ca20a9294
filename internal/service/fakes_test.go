package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/grievance-portal/internal/config"
	"github.com/spec-kit/grievance-portal/internal/domain"
	"github.com/spec-kit/grievance-portal/internal/events"
	"github.com/spec-kit/grievance-portal/internal/mailer"
	"github.com/spec-kit/grievance-portal/internal/repository"
	"github.com/spec-kit/grievance-portal/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			AccessTokenTTLMinutes:   60,
			PasswordResetTTLMinutes: 10,
			BcryptCost:              4,
			LoginAttempts:           5,
			LoginWindowMinutes:      15,
			ResetRequests:           3,
			ResetWindowMinutes:      60,
		},
		Storage:   config.StorageConfig{MaxUploadBytes: 1 << 20},
		Grievance: config.GrievanceConfig{AllowReopen: true},
	}
}

// MockIdentityRepository is a testify mock of repository.IdentityRepository.
type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	args := m.Called(ctx, identity)
	if args.Error(0) == nil && identity.ID == "" {
		identity.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *MockIdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	args := m.Called(ctx, id)
	if identity, ok := args.Get(0).(*domain.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	args := m.Called(ctx, email)
	if identity, ok := args.Get(0).(*domain.Identity); ok {
		return identity, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityRepository) List(ctx context.Context, roles []domain.Role) ([]domain.Identity, error) {
	args := m.Called(ctx, roles)
	identities, _ := args.Get(0).([]domain.Identity)
	return identities, args.Error(1)
}

func (m *MockIdentityRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *MockIdentityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockIdentityRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type fakeResetRepo struct {
	mu    sync.Mutex
	codes []repository.PasswordResetCode
}

func (f *fakeResetRepo) Create(_ context.Context, code *repository.PasswordResetCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	code.ID = string(rune('a' + len(f.codes)))
	f.codes = append(f.codes, *code)
	return nil
}

func (f *fakeResetRepo) GetLatest(_ context.Context, identityID string) (*repository.PasswordResetCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.codes) - 1; i >= 0; i-- {
		if f.codes[i].IdentityID == identityID && f.codes[i].UsedAt == nil {
			code := f.codes[i]
			return &code, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeResetRepo) MarkUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.codes {
		if f.codes[i].ID == id {
			now := time.Now()
			f.codes[i].UsedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeResetRepo) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.codes[:0]
	var purged int64
	for _, code := range f.codes {
		if code.ExpiresAt.Before(cutoff) || code.UsedAt != nil {
			purged++
			continue
		}
		kept = append(kept, code)
	}
	f.codes = kept
	return purged, nil
}

type fakeGrievanceRepo struct {
	mu          sync.Mutex
	rows        map[int64]domain.Grievance
	nextID      int64
	history     *fakeHistoryRepo
	failWrite   error
	failHistory error
}

func newFakeGrievanceRepo(seed ...domain.Grievance) *fakeGrievanceRepo {
	repo := &fakeGrievanceRepo{rows: map[int64]domain.Grievance{}, history: &fakeHistoryRepo{}}
	for _, g := range seed {
		repo.rows[g.ID] = g
		if g.ID > repo.nextID {
			repo.nextID = g.ID
		}
	}
	return repo
}

func (f *fakeGrievanceRepo) Create(_ context.Context, g *domain.Grievance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.nextID++
	g.ID = f.nextID
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	f.rows[g.ID] = g.Clone()
	return nil
}

// UpdateWithHistory keeps both writes or neither.
func (f *fakeGrievanceRepo) UpdateWithHistory(_ context.Context, g *domain.Grievance, entry *domain.GrievanceHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	if _, ok := f.rows[g.ID]; !ok {
		return repository.ErrNotFound
	}
	if f.failHistory != nil {
		return f.failHistory
	}
	f.rows[g.ID] = g.Clone()
	f.history.append(entry)
	return nil
}

func (f *fakeGrievanceRepo) GetByID(_ context.Context, id int64) (*domain.Grievance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := g.Clone()
	return &clone, nil
}

func (f *fakeGrievanceRepo) List(_ context.Context, filter repository.GrievanceFilter) ([]domain.Grievance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Grievance{}
	for _, g := range f.rows {
		if filter.SubmitterID != nil && g.SubmitterID != *filter.SubmitterID {
			continue
		}
		if len(filter.Categories) > 0 && !containsValue(filter.Categories, g.Category) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsValue(filter.Statuses, g.Status) {
			continue
		}
		if filter.SearchTerm != nil && !strings.Contains(strings.ToLower(g.Description), strings.ToLower(*filter.SearchTerm)) {
			continue
		}
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsValue[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.GrievanceHistory
}

func (f *fakeHistoryRepo) append(h *domain.GrievanceHistory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = int64(len(f.entries) + 1)
	h.CreatedAt = time.Now()
	f.entries = append(f.entries, *h)
}

func (f *fakeHistoryRepo) ListByGrievance(_ context.Context, grievanceID int64) ([]domain.GrievanceHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.GrievanceHistory{}
	for _, h := range f.entries {
		if h.GrievanceID == grievanceID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Store(_ context.Context, owner, filename string, content io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := owner + "/" + filename
	m.objects[key] = data
	return key, nil
}

func (m *memoryStorage) Retrieve(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.published))
	for _, event := range d.published {
		out = append(out, event.Type)
	}
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type countingLimiter struct {
	counts map[string]int
	resets []string
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

func (l *countingLimiter) Reset(_ context.Context, key string) error {
	delete(l.counts, key)
	l.resets = append(l.resets, key)
	return nil
}
