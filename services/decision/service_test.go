package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/threatgate/threatgate/internal/enum"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/models"
)

type mockAllowlistRepository struct {
	mock.Mock
}

func (m *mockAllowlistRepository) GetByIP(ctx context.Context, ip string) (*models.AllowlistEntry, error) {
	args := m.Called(ctx, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AllowlistEntry), args.Error(1)
}

func (m *mockAllowlistRepository) List(ctx context.Context, limit, offset int) ([]*models.AllowlistEntry, int64, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.AllowlistEntry), args.Get(1).(int64), args.Error(2)
}

func (m *mockAllowlistRepository) Save(ctx context.Context, entry *models.AllowlistEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAllowlistRepository) DeleteByIP(ctx context.Context, ip string) error {
	args := m.Called(ctx, ip)
	return args.Error(0)
}

type mockReputationRepository struct {
	mock.Mock
}

func (m *mockReputationRepository) Upsert(ctx context.Context, entry *models.ReputationEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

func (m *mockReputationRepository) GetByIP(ctx context.Context, ip string) ([]*models.ReputationEntry, error) {
	args := m.Called(ctx, ip)
	return args.Get(0).([]*models.ReputationEntry), args.Error(1)
}

func (m *mockReputationRepository) GetByIPAndSource(ctx context.Context, ip, source string) (*models.ReputationEntry, error) {
	args := m.Called(ctx, ip, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReputationEntry), args.Error(1)
}

func (m *mockReputationRepository) Deactivate(ctx context.Context, ip, source string) error {
	args := m.Called(ctx, ip, source)
	return args.Error(0)
}

func (m *mockReputationRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockReputationRepository) ListEffectiveActive(ctx context.Context, now time.Time, limit, offset int) ([]*models.ReputationEntry, int64, error) {
	args := m.Called(ctx, now, limit, offset)
	return args.Get(0).([]*models.ReputationEntry), args.Get(1).(int64), args.Error(2)
}

func (m *mockReputationRepository) CountBySource(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *mockReputationRepository) CountByCountry(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *mockReputationRepository) CountByActivity(ctx context.Context, now time.Time) (int64, int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func testLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func newTestService(t *testing.T, allowlist *mockAllowlistRepository, reputation *mockReputationRepository) *decisionService {
	t.Helper()
	service, err := NewDecisionService(allowlist, reputation, "", testLogger())
	require.NoError(t, err)
	return service.(*decisionService)
}

func TestDecide_AllowlistWinsOverAnyReputation(t *testing.T) {
	// Arrange: IP is both allowlisted and blacklisted with max confidence
	allowlist := new(mockAllowlistRepository)
	reputation := new(mockReputationRepository)
	allowlist.On("GetByIP", mock.Anything, "203.0.113.7").Return(&models.AllowlistEntry{IP: "203.0.113.7"}, nil)

	service := newTestService(t, allowlist, reputation)

	// Act
	decision, err := service.Decide(context.Background(), "203.0.113.7")

	// Assert: whitelist wins and the reputation store is never consulted
	require.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Equal(t, enum.DecisionWhitelist, decision.Reason)
	reputation.AssertNotCalled(t, "GetByIP", mock.Anything, mock.Anything)
}

func TestDecide_HighestConfidenceEntryWins(t *testing.T) {
	allowlist := new(mockAllowlistRepository)
	reputation := new(mockReputationRepository)
	allowlist.On("GetByIP", mock.Anything, "203.0.113.7").Return(nil, nil)
	reputation.On("GetByIP", mock.Anything, "203.0.113.7").Return([]*models.ReputationEntry{
		{IP: "203.0.113.7", Source: "intel-portal", Confidence: 60, Active: true},
		{IP: "203.0.113.7", Source: "intel-feed", Confidence: 90, Active: true},
	}, nil)

	service := newTestService(t, allowlist, reputation)

	decision, err := service.Decide(context.Background(), "203.0.113.7")

	require.NoError(t, err)
	assert.True(t, decision.Blocked)
	assert.Equal(t, enum.DecisionBlacklist, decision.Reason)
	require.NotNil(t, decision.Entry)
	assert.Equal(t, "intel-feed", decision.Entry.Source)
	assert.Equal(t, 90, decision.Entry.Confidence)
}

func TestDecide_ExpiredEntryDoesNotBlock(t *testing.T) {
	// Arrange: the only entry is still flagged active but its removal date passed
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)

	allowlist := new(mockAllowlistRepository)
	reputation := new(mockReputationRepository)
	allowlist.On("GetByIP", mock.Anything, "203.0.113.7").Return(nil, nil)
	reputation.On("GetByIP", mock.Anything, "203.0.113.7").Return([]*models.ReputationEntry{
		{IP: "203.0.113.7", Confidence: 95, Active: true, RemovalAt: &expired},
	}, nil)

	service := newTestService(t, allowlist, reputation)
	service.now = func() time.Time { return now }

	// Act
	decision, err := service.Decide(context.Background(), "203.0.113.7")

	// Assert: expiry is evaluated at read time, no sweep required
	require.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Equal(t, enum.DecisionNone, decision.Reason)
}

func TestDecide_InactiveEntryDoesNotBlock(t *testing.T) {
	allowlist := new(mockAllowlistRepository)
	reputation := new(mockReputationRepository)
	allowlist.On("GetByIP", mock.Anything, "203.0.113.7").Return(nil, nil)
	reputation.On("GetByIP", mock.Anything, "203.0.113.7").Return([]*models.ReputationEntry{
		{IP: "203.0.113.7", Confidence: 95, Active: false},
	}, nil)

	service := newTestService(t, allowlist, reputation)

	decision, err := service.Decide(context.Background(), "203.0.113.7")

	require.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Equal(t, enum.DecisionNone, decision.Reason)
}

func TestDecide_UnknownIPIsNotBlocked(t *testing.T) {
	allowlist := new(mockAllowlistRepository)
	reputation := new(mockReputationRepository)
	allowlist.On("GetByIP", mock.Anything, "10.0.0.1").Return(nil, nil)
	reputation.On("GetByIP", mock.Anything, "10.0.0.1").Return([]*models.ReputationEntry{}, nil)

	service := newTestService(t, allowlist, reputation)

	decision, err := service.Decide(context.Background(), "10.0.0.1")

	require.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Equal(t, enum.DecisionNone, decision.Reason)
	assert.Nil(t, decision.Entry)
}

func TestInvalidate_NoCacheIsNoop(t *testing.T) {
	service := newTestService(t, new(mockAllowlistRepository), new(mockReputationRepository))

	// must not panic with no cache configured
	service.Invalidate(context.Background())
}
