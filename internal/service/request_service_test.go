package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/repository"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

type fakeRequestRepo struct {
	mu        sync.Mutex
	store     map[string]domain.ServiceRequest
	createErr error
	written   chan string
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{
		store:   make(map[string]domain.ServiceRequest),
		written: make(chan string, 8),
	}
}

func (f *fakeRequestRepo) Create(ctx context.Context, request *domain.ServiceRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.store[request.ID] = *request
	select {
	case f.written <- request.ID:
	default:
	}
	return nil
}

func (f *fakeRequestRepo) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.store[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &record, nil
}

func (f *fakeRequestRepo) ListWithFilter(ctx context.Context, filter repository.RequestFilter) ([]domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServiceRequest
	for _, record := range f.store {
		if filter.UserID != nil && record.UserID != *filter.UserID {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeRequestRepo) UpdateStatus(ctx context.Context, id string, allowedFrom []domain.RequestStatus, change repository.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	permitted := false
	for _, from := range allowedFrom {
		if record.Status == from {
			permitted = true
			break
		}
	}
	if !permitted {
		return repository.ErrStatusConflict
	}
	record.Status = change.Status
	record.UpdatedAt = change.UpdatedAt
	if change.Cost != nil {
		record.Cost = change.Cost
		record.InvoiceNotes = change.InvoiceNotes
	}
	f.store[id] = record
	return nil
}

func (f *fakeRequestRepo) AssignTechnician(ctx context.Context, id, technicianID string, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	record.TechnicianID = &technicianID
	record.UpdatedAt = updatedAt
	f.store[id] = record
	return nil
}

func (f *fakeRequestRepo) UpdateWorkNotes(ctx context.Context, id string, notes *string, estimatedCompletion *time.Time, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if notes != nil {
		record.TechnicianNotes = notes
	}
	if estimatedCompletion != nil {
		record.EstimatedCompletion = estimatedCompletion
	}
	record.UpdatedAt = updatedAt
	f.store[id] = record
	return nil
}

func (f *fakeRequestRepo) Revenue(ctx context.Context) (repository.RevenueSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var summary repository.RevenueSummary
	for _, record := range f.store {
		if record.Status == domain.StatusCompleted && record.Cost != nil {
			summary.CompletedCount++
			summary.TotalRevenue += *record.Cost
		}
	}
	return summary, nil
}

func (f *fakeRequestRepo) seed(record domain.ServiceRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[record.ID] = record
}

type fakeTechnicianRepo struct {
	roster map[string]domain.Technician
}

func (f *fakeTechnicianRepo) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	tech, ok := f.roster[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &tech, nil
}

func (f *fakeTechnicianRepo) List(ctx context.Context) ([]domain.Technician, error) {
	out := make([]domain.Technician, 0, len(f.roster))
	for _, tech := range f.roster {
		out = append(out, tech)
	}
	return out, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.RequestHistory
}

func (f *fakeHistoryRepo) Create(ctx context.Context, entry *domain.RequestHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeHistoryRepo) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.RequestHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RequestHistory
	for _, entry := range f.entries {
		if entry.RequestID == requestID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	count int
}

func (f *fakeNotifier) Notify(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
}

func (f *fakeNotifier) notifications() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type fixture struct {
	svc         *RequestService
	requests    *fakeRequestRepo
	technicians *fakeTechnicianRepo
	history     *fakeHistoryRepo
	notifier    *fakeNotifier
	dispatcher  events.Dispatcher
}

func newFixture() *fixture {
	requests := newFakeRequestRepo()
	technicians := &fakeTechnicianRepo{roster: map[string]domain.Technician{
		"tech-001": {ID: "tech-001", Name: "Alice Johnson", Expertise: []string{"Hardware"}, CurrentWorkload: 3},
		"tech-004": {ID: "tech-004", Name: "Diana Miller", Expertise: []string{"Printer Repair"}, CurrentWorkload: 1},
	}}
	history := &fakeHistoryRepo{}
	notifier := &fakeNotifier{}
	dispatcher := events.NewInMemoryDispatcher()

	svc := NewRequestService(RequestDependencies{
		RequestRepo:    requests,
		TechnicianRepo: technicians,
		HistoryRepo:    history,
		Dispatcher:     dispatcher,
		Notifier:       notifier,
		Logger:         zap.NewNop(),
	})
	return &fixture{
		svc:         svc,
		requests:    requests,
		technicians: technicians,
		history:     history,
		notifier:    notifier,
		dispatcher:  dispatcher,
	}
}

func validDraft() domain.RequestDraft {
	return domain.RequestDraft{
		CustomerName:     "Jo Ann",
		CustomerEmail:    "jo.ann@example.com",
		DeviceType:       domain.DevicePrinter,
		Brand:            "Epson",
		OSVersion:        "Windows 11",
		IssueDescription: "Printer reports a paper jam but there is no paper stuck anywhere.",
	}
}

func TestCreateReturnsBeforeDurableWrite(t *testing.T) {
	f := newFixture()

	created, err := f.svc.Create(context.Background(), "user-1", validDraft())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, created.SubmittedAt, created.UpdatedAt)

	select {
	case id := <-f.requests.written:
		assert.Equal(t, created.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("durable write never happened")
	}

	stored, err := f.requests.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *stored)
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	f := newFixture()
	draft := validDraft()
	draft.IssueDescription = "too short"

	_, err := f.svc.Create(context.Background(), "user-1", draft)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))
}

func TestCreateWriteFailurePublishesEvent(t *testing.T) {
	f := newFixture()
	f.requests.createErr = errors.New("connection reset")

	failures := make(chan events.Event, 1)
	f.dispatcher.Subscribe(events.EventRequestWriteFailed, func(ctx context.Context, event events.Event) error {
		failures <- event
		return nil
	})

	created, err := f.svc.Create(context.Background(), "user-1", validDraft())
	require.NoError(t, err, "the caller still gets its optimistic copy")

	select {
	case event := <-failures:
		assert.Equal(t, created.ID, event.RequestID)
		payload, ok := event.Payload.(events.RequestWriteFailedPayload)
		require.True(t, ok)
		assert.Equal(t, "create", payload.Operation)
		assert.Contains(t, payload.Reason, "connection reset")
	case <-time.After(2 * time.Second):
		t.Fatal("write failure was silently dropped")
	}
}

func TestUpdateStatusHappyPath(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", UserID: "user-1", Status: domain.StatusPending})

	updated, err := f.svc.UpdateStatus(context.Background(), "admin-1", "req-1", domain.StatusScheduled, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, updated.Status)

	entries, err := f.history.ListByRequest(context.Background(), "req-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ChangeTypeStatus, entries[0].ChangeType)
	assert.Equal(t, domain.StatusPending, entries[0].OldValue["status"])
	assert.Equal(t, domain.StatusScheduled, entries[0].NewValue["status"])

	assert.Equal(t, 1, f.notifier.notifications())
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", Status: domain.StatusCancelled})

	_, err := f.svc.UpdateStatus(context.Background(), "admin-1", "req-1", domain.StatusCompleted,
		&CompletionDetails{Cost: 100})
	require.Error(t, err)
	assert.Equal(t, "ILLEGAL_TRANSITION", apperrors.CodeOf(err))

	// a terminal state cannot even transition to itself
	_, err = f.svc.UpdateStatus(context.Background(), "admin-1", "req-1", domain.StatusCancelled, nil)
	require.Error(t, err)
	assert.Equal(t, "ILLEGAL_TRANSITION", apperrors.CodeOf(err))

	stored, err := f.requests.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status, "record must be unchanged")
	assert.Nil(t, stored.Cost)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", Status: domain.StatusPending})

	_, err := f.svc.UpdateStatus(context.Background(), "admin-1", "req-1", domain.RequestStatus("Exploded"), nil)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))
}

func TestCompletionRequiresCost(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", Status: domain.StatusInProgress})

	_, err := f.svc.UpdateStatus(context.Background(), "admin-1", "req-1", domain.StatusCompleted, nil)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))

	_, err = f.svc.UpdateStatus(context.Background(), "admin-1", "req-1", domain.StatusCompleted,
		&CompletionDetails{Cost: -5})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_FAILED", apperrors.CodeOf(err))

	notes := "replaced fuser unit"
	updated, err := f.svc.UpdateStatus(context.Background(), "admin-1", "req-1", domain.StatusCompleted,
		&CompletionDetails{Cost: 149.50, InvoiceNotes: &notes})
	require.NoError(t, err)
	require.NotNil(t, updated.Cost)
	assert.Equal(t, 149.50, *updated.Cost)
	require.NotNil(t, updated.InvoiceNotes)
	assert.Equal(t, notes, *updated.InvoiceNotes)
}

// conflictingRepo reports a status that is stale by the time the guarded
// write executes, mimicking a concurrent admin.
type conflictingRepo struct {
	*fakeRequestRepo
}

func (c *conflictingRepo) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	record, err := c.fakeRequestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Status = domain.StatusPending
	return record, nil
}

func TestUpdateStatusConcurrentConflict(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", Status: domain.StatusCompleted})

	svc := NewRequestService(RequestDependencies{
		RequestRepo:    &conflictingRepo{f.requests},
		TechnicianRepo: f.technicians,
		HistoryRepo:    f.history,
		Dispatcher:     f.dispatcher,
		Notifier:       f.notifier,
		Logger:         zap.NewNop(),
	})

	// the read sees Pending, but the stored row is already Completed; the
	// storage-layer guard must refuse the write
	_, err := svc.UpdateStatus(context.Background(), "admin-1", "req-1", domain.StatusScheduled, nil)
	require.Error(t, err)
	assert.Equal(t, "ILLEGAL_TRANSITION", apperrors.CodeOf(err))

	stored, err := f.requests.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestUpdateStatusNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateStatus(context.Background(), "admin-1", "missing", domain.StatusScheduled, nil)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.CodeOf(err))
}

func TestAssignTechnician(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", Status: domain.StatusPending})

	updated, err := f.svc.AssignTechnician(context.Background(), "admin-1", "req-1", "tech-004")
	require.NoError(t, err)
	require.NotNil(t, updated.TechnicianID)
	assert.Equal(t, "tech-004", *updated.TechnicianID)

	entries, err := f.history.ListByRequest(context.Background(), "req-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ChangeTypeTechnician, entries[0].ChangeType)
}

func TestAssignUnknownTechnician(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", Status: domain.StatusPending})

	_, err := f.svc.AssignTechnician(context.Background(), "admin-1", "req-1", "tech-999")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.CodeOf(err))
}

func TestAssignToFinishedRequest(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", Status: domain.StatusCompleted})

	_, err := f.svc.AssignTechnician(context.Background(), "admin-1", "req-1", "tech-001")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.CodeOf(err))
}

func TestGetForUserEnforcesOwnership(t *testing.T) {
	f := newFixture()
	f.requests.seed(domain.ServiceRequest{ID: "req-1", UserID: "user-1", Status: domain.StatusPending})

	_, err := f.svc.GetForUser(context.Background(), "user-2", "req-1")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", apperrors.CodeOf(err))

	record, err := f.svc.GetForUser(context.Background(), "user-1", "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", record.ID)
}

func TestRevenueCountsOnlyCompleted(t *testing.T) {
	f := newFixture()
	cost1, cost2 := 100.0, 49.99
	f.requests.seed(domain.ServiceRequest{ID: "req-1", Status: domain.StatusCompleted, Cost: &cost1})
	f.requests.seed(domain.ServiceRequest{ID: "req-2", Status: domain.StatusCompleted, Cost: &cost2})
	f.requests.seed(domain.ServiceRequest{ID: "req-3", Status: domain.StatusInProgress})

	summary, err := f.svc.Revenue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.CompletedCount)
	assert.InDelta(t, 149.99, summary.TotalRevenue, 0.001)
}
