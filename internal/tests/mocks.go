package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"medtransit/internal/domain"
	"medtransit/internal/redis"
	"medtransit/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount    int32
	UpdateCASCallCount int32

	// Error injection
	CreateError    error
	UpdateCASError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Trip, 0, len(m.trips))
	for _, t := range m.trips {
		copy := *t
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockTripRepository) UpdateStatusCAS(ctx context.Context, trip *domain.Trip, expectedVersion int64) error {
	atomic.AddInt32(&m.UpdateCASCallCount, 1)
	if m.UpdateCASError != nil {
		return m.UpdateCASError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.trips[trip.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	copy := *trip
	copy.Version = expectedVersion + 1
	m.trips[trip.ID] = &copy
	trip.Version = copy.Version
	return nil
}

// GetTrip returns the stored trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[id]
}

// ──────────────────────────────────────────────
// MOCK HISTORY REPOSITORY
// ──────────────────────────────────────────────

// MockHistoryRepository is a mock implementation of HistoryRepository.
type MockHistoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.StatusHistoryEntry

	// Counters for verification
	AppendCallCount int32

	// Error injection
	AppendError error
}

// NewMockHistoryRepository creates a new mock history repository.
func NewMockHistoryRepository() *MockHistoryRepository {
	return &MockHistoryRepository{}
}

func (m *MockHistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	atomic.AddInt32(&m.AppendCallCount, 1)
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *entry
	m.entries = append(m.entries, &copy)
	return nil
}

func (m *MockHistoryRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.StatusHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.StatusHistoryEntry, 0)
	for _, e := range m.entries {
		if e.TripID == tripID {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

// Entries returns all appended entries for test assertions.
func (m *MockHistoryRepository) Entries() []*domain.StatusHistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.StatusHistoryEntry, len(m.entries))
	copy(result, m.entries)
	return result
}

// ──────────────────────────────────────────────
// MOCK CONFIRMATION REPOSITORY
// ──────────────────────────────────────────────

// MockConfirmationRepository is a mock implementation of ConfirmationRepository.
type MockConfirmationRepository struct {
	mu       sync.RWMutex
	requests map[string]*domain.ConfirmationRequest

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockConfirmationRepository creates a new mock confirmation repository.
func NewMockConfirmationRepository() *MockConfirmationRepository {
	return &MockConfirmationRepository{
		requests: make(map[string]*domain.ConfirmationRequest),
	}
}

// AddRequest adds a confirmation request to the mock repository.
func (m *MockConfirmationRepository) AddRequest(req *domain.ConfirmationRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
}

func (m *MockConfirmationRepository) Create(ctx context.Context, req *domain.ConfirmationRequest) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.TripID == req.TripID && !existing.Status.IsTerminal() {
			return repository.ErrActiveConfirmationExists
		}
	}
	copy := *req
	m.requests[req.ID] = &copy
	return nil
}

func (m *MockConfirmationRepository) GetByID(ctx context.Context, id string) (*domain.ConfirmationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *req
	return &copy, nil
}

func (m *MockConfirmationRepository) GetActiveByTrip(ctx context.Context, tripID string) (*domain.ConfirmationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, req := range m.requests {
		if req.TripID == tripID && !req.Status.IsTerminal() {
			copy := *req
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockConfirmationRepository) Update(ctx context.Context, req *domain.ConfirmationRequest) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *req
	m.requests[req.ID] = &copy
	return nil
}

func (m *MockConfirmationRepository) ListOpenByPhone(ctx context.Context, raw, normalized string) ([]*domain.ConfirmationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.ConfirmationRequest, 0)
	for _, req := range m.requests {
		if req.Status != domain.ConfirmationAwaitingResponse && req.Status != domain.ConfirmationUnclear {
			continue
		}
		if req.RecipientPhone == raw || req.NormalizedPhone == normalized {
			copy := *req
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockConfirmationRepository) LatestByPhone(ctx context.Context, raw, normalized string) (*domain.ConfirmationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.ConfirmationRequest
	for _, req := range m.requests {
		if req.RecipientPhone != raw && req.NormalizedPhone != normalized {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, nil
	}
	copy := *latest
	return &copy, nil
}

func (m *MockConfirmationRepository) ListExpired(ctx context.Context, now time.Time) ([]*domain.ConfirmationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.ConfirmationRequest, 0)
	for _, req := range m.requests {
		open := req.Status == domain.ConfirmationAwaitingResponse || req.Status == domain.ConfirmationUnclear
		if open && req.ExpiresAt.Before(now) {
			copy := *req
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	return result, nil
}

// GetRequest returns the stored request for test assertions.
func (m *MockConfirmationRepository) GetRequest(id string) *domain.ConfirmationRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[id]
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION JOB REPOSITORY
// ──────────────────────────────────────────────

// MockNotificationJobRepository is a mock implementation of NotificationJobRepository.
type MockNotificationJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.NotificationJob

	// Counters for verification
	CreateCallCount     int32
	MarkSentCallCount   int32
	MarkFailedCallCount int32

	// Error injection
	CreateError error
}

// NewMockNotificationJobRepository creates a new mock job repository.
func NewMockNotificationJobRepository() *MockNotificationJobRepository {
	return &MockNotificationJobRepository{
		jobs: make(map[string]*domain.NotificationJob),
	}
}

func (m *MockNotificationJobRepository) Create(ctx context.Context, job *domain.NotificationJob) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *job
	m.jobs[job.ID] = &copy
	return nil
}

func (m *MockNotificationJobRepository) GetByID(ctx context.Context, id string) (*domain.NotificationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *job
	return &copy, nil
}

func (m *MockNotificationJobRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.NotificationJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.NotificationJob, 0)
	for _, j := range m.jobs {
		if j.TripID == tripID {
			copy := *j
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockNotificationJobRepository) MarkSent(ctx context.Context, jobID, providerRef string) error {
	atomic.AddInt32(&m.MarkSentCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != domain.NotificationJobPending {
		return repository.ErrNotFound
	}
	job.Status = domain.NotificationJobSent
	job.ProviderRef = providerRef
	job.SentAt = time.Now()
	return nil
}

func (m *MockNotificationJobRepository) MarkFailed(ctx context.Context, jobID, errorDetail string) error {
	atomic.AddInt32(&m.MarkFailedCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != domain.NotificationJobPending {
		return repository.ErrNotFound
	}
	job.Status = domain.NotificationJobFailed
	job.ErrorDetail = errorDetail
	return nil
}

// Jobs returns all stored jobs for test assertions.
func (m *MockNotificationJobRepository) Jobs() []*domain.NotificationJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.NotificationJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		copy := *j
		result = append(result, &copy)
	}
	return result
}

// ──────────────────────────────────────────────
// MOCK SUPPRESSION REPOSITORY
// ──────────────────────────────────────────────

type suppressionKey struct {
	address string
	channel domain.NotificationChannel
}

// MockSuppressionRepository is a mock implementation of SuppressionRepository.
type MockSuppressionRepository struct {
	mu      sync.RWMutex
	entries map[suppressionKey]*domain.SuppressionEntry

	// Counters for verification
	UpsertCallCount int32

	// Error injection
	GetError    error
	UpsertError error
}

// NewMockSuppressionRepository creates a new mock suppression repository.
func NewMockSuppressionRepository() *MockSuppressionRepository {
	return &MockSuppressionRepository{
		entries: make(map[suppressionKey]*domain.SuppressionEntry),
	}
}

// AddEntry adds a suppression entry to the mock repository.
func (m *MockSuppressionRepository) AddEntry(entry *domain.SuppressionEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[suppressionKey{entry.Address, entry.Channel}] = entry
}

func (m *MockSuppressionRepository) Get(ctx context.Context, address string, channel domain.NotificationChannel) (*domain.SuppressionEntry, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[suppressionKey{address, channel}]
	if !ok {
		return nil, nil
	}
	copy := *entry
	return &copy, nil
}

func (m *MockSuppressionRepository) Upsert(ctx context.Context, entry *domain.SuppressionEntry) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *entry
	m.entries[suppressionKey{entry.Address, entry.Channel}] = &copy
	return nil
}

// GetEntry returns the stored entry for test assertions.
func (m *MockSuppressionRepository) GetEntry(address string, channel domain.NotificationChannel) *domain.SuppressionEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[suppressionKey{address, channel}]
}

// ──────────────────────────────────────────────
// MOCK RATE TIER / PAYOUT REPOSITORIES
// ──────────────────────────────────────────────

// MockRateTierRepository is a mock implementation of RateTierRepository.
type MockRateTierRepository struct {
	mu    sync.RWMutex
	tiers []*domain.RateTier
}

// NewMockRateTierRepository creates a new mock rate tier repository.
func NewMockRateTierRepository() *MockRateTierRepository {
	return &MockRateTierRepository{}
}

// AddTier adds a rate tier to the mock repository.
func (m *MockRateTierRepository) AddTier(tier *domain.RateTier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers = append(m.tiers, tier)
}

func (m *MockRateTierRepository) ListByDriver(ctx context.Context, driverID string, level domain.ServiceLevel) ([]*domain.RateTier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.RateTier, 0)
	for _, t := range m.tiers {
		if t.DriverID == driverID && t.ServiceLevel == level {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FromMiles < result[j].FromMiles })
	return result, nil
}

// MockPayoutRepository is a mock implementation of PayoutRepository.
type MockPayoutRepository struct {
	mu      sync.RWMutex
	payouts map[string]*domain.DriverPayout

	// Counters for verification
	CreateCallCount int32

	// Error injection
	CreateError error
}

// NewMockPayoutRepository creates a new mock payout repository.
func NewMockPayoutRepository() *MockPayoutRepository {
	return &MockPayoutRepository{
		payouts: make(map[string]*domain.DriverPayout),
	}
}

func (m *MockPayoutRepository) Create(ctx context.Context, payout *domain.DriverPayout) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *payout
	m.payouts[payout.TripID] = &copy
	return nil
}

func (m *MockPayoutRepository) GetByTrip(ctx context.Context, tripID string) (*domain.DriverPayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payout, ok := m.payouts[tripID]
	if !ok {
		return nil, nil
	}
	copy := *payout
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER / FACILITY REPOSITORIES
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

// MockFacilityRepository is a mock implementation of FacilityRepository.
type MockFacilityRepository struct {
	mu         sync.RWMutex
	facilities map[string]*domain.Facility
}

// NewMockFacilityRepository creates a new mock facility repository.
func NewMockFacilityRepository() *MockFacilityRepository {
	return &MockFacilityRepository{
		facilities: make(map[string]*domain.Facility),
	}
}

// AddFacility adds a facility to the mock repository.
func (m *MockFacilityRepository) AddFacility(facility *domain.Facility) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facilities[facility.ID] = facility
}

func (m *MockFacilityRepository) GetByID(ctx context.Context, id string) (*domain.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	facility, ok := m.facilities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *facility
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Counters for verification
	AcquireCallCount int32
	ReleaseCallCount int32

	// Behavior control
	FailAcquire bool
	AcquireErr  error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

func (m *MockLockStore) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	if m.FailAcquire {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[tripID] {
		return false, nil
	}
	m.locks[tripID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseTripLock(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, tripID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK SUPPRESSION CACHE
// ──────────────────────────────────────────────

// MockSuppressionCache is a mock implementation of SuppressionCacheInterface.
type MockSuppressionCache struct {
	mu      sync.RWMutex
	entries map[string]*redis.CachedSuppression

	// Counters for verification
	GetCallCount        int32
	SetCallCount        int32
	InvalidateCallCount int32

	// Error injection
	GetError error
}

// NewMockSuppressionCache creates a new mock suppression cache.
func NewMockSuppressionCache() *MockSuppressionCache {
	return &MockSuppressionCache{
		entries: make(map[string]*redis.CachedSuppression),
	}
}

func (m *MockSuppressionCache) GetSuppression(ctx context.Context, channel, address string) (*redis.CachedSuppression, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[channel+":"+address]
	if !ok {
		return nil, nil
	}
	copy := *entry
	return &copy, nil
}

func (m *MockSuppressionCache) SetSuppression(ctx context.Context, entry *redis.CachedSuppression) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *entry
	m.entries[entry.Channel+":"+entry.Address] = &copy
	return nil
}

func (m *MockSuppressionCache) InvalidateSuppression(ctx context.Context, channel, address string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, channel+":"+address)
	return nil
}

// ──────────────────────────────────────────────
// RECORDING GATEWAY
// ──────────────────────────────────────────────

// SentMessage is one message captured by the RecordingGateway.
type SentMessage struct {
	Channel domain.NotificationChannel
	To      string
	Body    string
}

// RecordingGateway is a Gateway that records every send for assertions.
type RecordingGateway struct {
	mu       sync.Mutex
	messages []SentMessage

	// Error injection
	SendError error
}

// NewRecordingGateway creates a new recording gateway.
func NewRecordingGateway() *RecordingGateway {
	return &RecordingGateway{}
}

func (g *RecordingGateway) Send(ctx context.Context, channel domain.NotificationChannel, to, body string) (string, error) {
	if g.SendError != nil {
		return "", g.SendError
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, SentMessage{Channel: channel, To: to, Body: body})
	return "ref-" + to, nil
}

// Messages returns all recorded messages.
func (g *RecordingGateway) Messages() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	result := make([]SentMessage, len(g.messages))
	copy(result, g.messages)
	return result
}

// Verify mocks satisfy their interfaces.
var (
	_ repository.TripRepository            = (*MockTripRepository)(nil)
	_ repository.HistoryRepository         = (*MockHistoryRepository)(nil)
	_ repository.ConfirmationRepository    = (*MockConfirmationRepository)(nil)
	_ repository.NotificationJobRepository = (*MockNotificationJobRepository)(nil)
	_ repository.SuppressionRepository     = (*MockSuppressionRepository)(nil)
	_ repository.RateTierRepository        = (*MockRateTierRepository)(nil)
	_ repository.PayoutRepository          = (*MockPayoutRepository)(nil)
	_ repository.DriverRepository          = (*MockDriverRepository)(nil)
	_ repository.FacilityRepository        = (*MockFacilityRepository)(nil)
	_ redis.LockStoreInterface             = (*MockLockStore)(nil)
)
