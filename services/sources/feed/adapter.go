package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/enum"
	er "github.com/threatgate/threatgate/internal/errors"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
	"github.com/threatgate/threatgate/services/sources"
)

type Config struct {
	CallTimeout      time.Duration
	TransientRetries int
	PageSize         int
}

type adapter struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

func NewAdapter(cfg Config, log logger.Logger) interfaces.SourceAdapter {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	return &adapter{
		cfg:    cfg,
		client: sources.NewHTTPClient(cfg.CallTimeout),
		log:    log,
	}
}

func (a *adapter) Kind() enum.SourceKind {
	return enum.SourceFeed
}

type session struct {
	source string
	base   *url.URL
	token  string
}

func (s *session) Source() string {
	return s.source
}

// Authenticate exchanges the API key for a bearer token; the token is the session.
func (a *adapter) Authenticate(ctx context.Context, credential *models.Credential, secret string) (interfaces.Session, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FeedAdapter.Authenticate")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagSource(span, credential.Source)

	base, err := sources.ValidateEndpoint(credential.Source, credential.Endpoint)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	payload, _ := json.Marshal(map[string]string{
		"username": credential.Username,
		"apiKey":   secret,
	})

	resp, err := sources.DoWithRetry(ctx, a.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, base.JoinPath("/v2/auth/token").String(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, a.cfg.TransientRetries)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		authErr := er.NewAuthenticationError(credential.Source, "token",
			fmt.Errorf("feed returned status %d", resp.StatusCode))
		tracing.TraceErr(span, authErr)
		return nil, authErr
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		authErr := er.NewAuthenticationError(credential.Source, "token", errors.Wrap(err, "decode response"))
		tracing.TraceErr(span, authErr)
		return nil, authErr
	}
	if result.Token == "" {
		authErr := er.NewAuthenticationError(credential.Source, "token", errors.New("empty token in response"))
		tracing.TraceErr(span, authErr)
		return nil, authErr
	}

	span.SetTag("success", true)
	return &session{source: credential.Source, base: base, token: result.Token}, nil
}

// Fetch pulls one indicator page. The provider hands out opaque cursors; an empty
// NextCursor means the feed is drained.
func (a *adapter) Fetch(ctx context.Context, s interfaces.Session, cursor string) (*interfaces.RawBatch, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FeedAdapter.Fetch")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagSource(span, s.Source())

	fs, ok := s.(*session)
	if !ok {
		return nil, errors.New("feed adapter: session from another adapter")
	}

	feedURL := fs.base.JoinPath("/v2/indicators")
	query := feedURL.Query()
	query.Set("limit", strconv.Itoa(a.cfg.PageSize))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	feedURL.RawQuery = query.Encode()

	resp, err := sources.DoWithRetry(ctx, a.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, feedURL.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+fs.token)
		return req, nil
	}, a.cfg.TransientRetries)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		authErr := er.NewAuthenticationError(s.Source(), "indicators", fmt.Errorf("feed returned status %d", resp.StatusCode))
		tracing.TraceErr(span, authErr)
		return nil, authErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := errors.Errorf("feed indicators returned status %d", resp.StatusCode)
		tracing.TraceErr(span, err)
		return nil, err
	}

	var result struct {
		Items      []json.RawMessage `json:"items"`
		NextCursor string            `json:"next_cursor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "decode indicator page")
	}

	span.SetTag("rows", len(result.Items))
	return &interfaces.RawBatch{
		Rows:       result.Items,
		NextCursor: result.NextCursor,
	}, nil
}

type feedIndicator struct {
	IP          string   `json:"ip"`
	Description string   `json:"description"`
	Score       *int     `json:"score"`
	FirstSeen   string   `json:"first_seen"`
	ValidUntil  string   `json:"valid_until"`
	Country     string   `json:"country"`
	Categories  []string `json:"categories"`
}

// Normalize maps named indicator fields onto the canonical entry shape. Optional
// fields stay nil when the feed omits them.
func (a *adapter) Normalize(credential *models.Credential, batch *interfaces.RawBatch) ([]*models.ReputationEntry, error) {
	now := time.Now()
	entries := make([]*models.ReputationEntry, 0, len(batch.Rows))

	for _, raw := range batch.Rows {
		var indicator feedIndicator
		if err := json.Unmarshal(raw, &indicator); err != nil {
			a.log.Warnf("Feed indicator for source %s rejected: %v", credential.Source, err)
			continue
		}

		confidence := 50
		if indicator.Score != nil {
			confidence = *indicator.Score
		}

		entry := &models.ReputationEntry{
			IP:         indicator.IP,
			Source:     credential.Source,
			Reason:     indicator.Description,
			Confidence: confidence,
			Categories: indicator.Categories,
			Active:     true,
			LastSeenAt: now,
			DetectedAt: now,
		}
		if t := parseFeedTime(indicator.FirstSeen); t != nil {
			entry.DetectedAt = *t
		}
		entry.RemovalAt = parseFeedTime(indicator.ValidUntil)
		if indicator.Country != "" {
			entry.Country = &indicator.Country
		}

		var rawMap map[string]interface{}
		if err := json.Unmarshal(raw, &rawMap); err == nil {
			entry.Raw = rawMap
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func parseFeedTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
