package export

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/threatgate/threatgate/internal/models"
)

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

func TestFirewallFeed_MapsEntries(t *testing.T) {
	// Arrange
	removal := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	reputation := new(mockReputationRepository)
	reputation.On("ListEffectiveActive", mock.Anything, mock.Anything, 500, 0).Return([]*models.ReputationEntry{
		{IP: "198.51.100.9", Source: "intel-feed", Reason: "open proxy", DetectedAt: removal.AddDate(0, -3, 0), RemovalAt: &removal},
		{IP: "203.0.113.7", Source: "intel-portal", Reason: "botnet c2", DetectedAt: removal.AddDate(0, -1, 0)},
	}, int64(2), nil)

	service := NewExportService(reputation)

	// Act
	feed, err := service.FirewallFeed(context.Background(), 1, 0)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), feed.Total)
	assert.Equal(t, 1, feed.Page)
	assert.Equal(t, DefaultPerPage, feed.PerPage)
	require.Len(t, feed.Entries, 2)
	assert.Equal(t, "198.51.100.9", feed.Entries[0].IP)
	assert.Equal(t, "open proxy", feed.Entries[0].Reason)
	assert.NotNil(t, feed.Entries[0].RemovalDate)
	assert.Nil(t, feed.Entries[1].RemovalDate)
}

func TestFirewallFeed_PageClamping(t *testing.T) {
	reputation := new(mockReputationRepository)
	// page 0 becomes 1, perPage above the cap is clamped
	reputation.On("ListEffectiveActive", mock.Anything, mock.Anything, MaxPerPage, 0).Return([]*models.ReputationEntry{}, int64(0), nil)

	service := NewExportService(reputation)

	feed, err := service.FirewallFeed(context.Background(), 0, 999999)

	require.NoError(t, err)
	assert.Equal(t, 1, feed.Page)
	assert.Equal(t, MaxPerPage, feed.PerPage)
}

func TestFirewallFeed_OffsetFollowsPage(t *testing.T) {
	reputation := new(mockReputationRepository)
	reputation.On("ListEffectiveActive", mock.Anything, mock.Anything, 100, 200).Return([]*models.ReputationEntry{}, int64(450), nil)

	service := NewExportService(reputation)

	feed, err := service.FirewallFeed(context.Background(), 3, 100)

	require.NoError(t, err)
	assert.Equal(t, 3, feed.Page)
	assert.Equal(t, int64(450), feed.Total)
	reputation.AssertCalled(t, "ListEffectiveActive", mock.Anything, mock.Anything, 100, 200)
}
