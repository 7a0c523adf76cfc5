package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	er "github.com/threatgate/threatgate/internal/errors"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/models"
)

func testLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func testAdapter(t *testing.T, handler http.Handler) (*adapter, *models.Credential, func()) {
	t.Helper()
	server := httptest.NewTLSServer(handler)

	a := NewAdapter(Config{PageSize: 100}, testLogger()).(*adapter)
	a.client = server.Client()

	credential := &models.Credential{
		Source:   "intel-feed",
		Username: "api-user",
		Endpoint: server.URL,
	}
	return a, credential, server.Close
}

func tokenHandler(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "api-user", body["username"])
		assert.Equal(t, "key-123", body["apiKey"])
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-abc"})
	})
	return mux
}

func TestFeedAdapter_Authenticate(t *testing.T) {
	a, credential, done := testAdapter(t, tokenHandler(t))
	defer done()

	s, err := a.Authenticate(context.Background(), credential, "key-123")
	require.NoError(t, err)
	assert.Equal(t, "intel-feed", s.Source())
	assert.Equal(t, "tok-abc", s.(*session).token)
}

func TestFeedAdapter_Authenticate_EmptyToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/auth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": ""})
	})
	a, credential, done := testAdapter(t, mux)
	defer done()

	_, err := a.Authenticate(context.Background(), credential, "key-123")
	require.Error(t, err)
	assert.True(t, er.IsAuthentication(err))
}

func TestFeedAdapter_Authenticate_RejectedKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/auth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	a, credential, done := testAdapter(t, mux)
	defer done()

	_, err := a.Authenticate(context.Background(), credential, "wrong")
	require.Error(t, err)
	assert.True(t, er.IsAuthentication(err))
}

func TestFeedAdapter_Authenticate_RejectsPlainHTTP(t *testing.T) {
	a := NewAdapter(Config{}, testLogger()).(*adapter)
	credential := &models.Credential{Source: "intel-feed", Endpoint: "http://feed.example.com"}

	_, err := a.Authenticate(context.Background(), credential, "key")
	require.Error(t, err)
	assert.True(t, er.IsConfiguration(err))
}

func TestFeedAdapter_FetchAndNormalize(t *testing.T) {
	mux := tokenHandler(t)
	mux.HandleFunc("/v2/indicators", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		if cursor := r.URL.Query().Get("cursor"); cursor != "" {
			assert.Equal(t, "c2", cursor)
			w.Write([]byte(`{"items": [], "next_cursor": ""}`))
			return
		}
		w.Write([]byte(`{
			"items": [
				{"ip":"203.0.113.7","description":"ssh brute force","score":90,"first_seen":"2026-01-15T09:00:00Z","valid_until":"2026-06-01T00:00:00Z","country":"CN","categories":["bruteforce","ssh"]},
				{"ip":"198.51.100.9","description":"open proxy"}
			],
			"next_cursor": "c2"
		}`))
	})
	a, credential, done := testAdapter(t, mux)
	defer done()

	s, err := a.Authenticate(context.Background(), credential, "key-123")
	require.NoError(t, err)

	// first page
	batch, err := a.Fetch(context.Background(), s, "")
	require.NoError(t, err)
	assert.Equal(t, "c2", batch.NextCursor)

	entries, err := a.Normalize(credential, batch)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "203.0.113.7", first.IP)
	assert.Equal(t, 90, first.Confidence)
	assert.Equal(t, []string{"bruteforce", "ssh"}, []string(first.Categories))
	assert.Equal(t, time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC), first.DetectedAt)
	require.NotNil(t, first.RemovalAt)
	require.NotNil(t, first.Country)
	assert.Equal(t, "CN", *first.Country)

	// score and dates missing: defaults apply
	second := entries[1]
	assert.Equal(t, 50, second.Confidence)
	assert.Nil(t, second.RemovalAt)
	assert.Nil(t, second.Country)
	assert.False(t, second.DetectedAt.IsZero())

	// second page drains the cursor
	batch, err = a.Fetch(context.Background(), s, "c2")
	require.NoError(t, err)
	assert.Empty(t, batch.NextCursor)
	assert.Empty(t, batch.Rows)
}

func TestFeedAdapter_Fetch_ExpiredTokenIsAuthError(t *testing.T) {
	mux := tokenHandler(t)
	mux.HandleFunc("/v2/indicators", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	a, credential, done := testAdapter(t, mux)
	defer done()

	s, err := a.Authenticate(context.Background(), credential, "key-123")
	require.NoError(t, err)

	_, err = a.Fetch(context.Background(), s, "")
	require.Error(t, err)
	assert.True(t, er.IsAuthentication(err))
}
