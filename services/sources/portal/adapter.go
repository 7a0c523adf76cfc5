package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
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

// The portal marks an authenticated browser session with these two cookies. Login
// is only trusted when both came back, whatever the HTTP status said.
const (
	cookieSession = "TG_SESSION"
	cookieMember  = "TG_MEMBER"

	defaultConfidence = 50
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
		cfg.PageSize = 500
	}
	return &adapter{
		cfg:    cfg,
		client: sources.NewHTTPClient(cfg.CallTimeout),
		log:    log,
	}
}

func (a *adapter) Kind() enum.SourceKind {
	return enum.SourcePortal
}

type session struct {
	source  string
	base    *url.URL
	cookies []*http.Cookie
}

func (s *session) Source() string {
	return s.source
}

// Authenticate performs the portal's two-stage login: an account-existence lookup
// followed by the credential-bearing login call.
func (a *adapter) Authenticate(ctx context.Context, credential *models.Credential, secret string) (interfaces.Session, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "PortalAdapter.Authenticate")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagSource(span, credential.Source)

	base, err := sources.ValidateEndpoint(credential.Source, credential.Endpoint)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err := a.lookupAccount(ctx, credential, base); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	cookies, err := a.login(ctx, credential, secret, base)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.SetTag("success", true)
	return &session{source: credential.Source, base: base, cookies: cookies}, nil
}

// lookupAccount is stage one: resolve the account identity before submitting the
// password. The portal rejects logins for unknown accounts with a generic error, so
// surfacing the lookup failure separately keeps operator diagnostics useful.
func (a *adapter) lookupAccount(ctx context.Context, credential *models.Credential, base *url.URL) error {
	payload, _ := json.Marshal(map[string]string{"userId": credential.Username})

	resp, err := sources.DoWithRetry(ctx, a.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, base.JoinPath("/api/v1/member/exist").String(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, a.cfg.TransientRetries)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return er.NewAuthenticationError(credential.Source, "lookup",
			fmt.Errorf("portal returned status %d", resp.StatusCode))
	}

	var result struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return er.NewAuthenticationError(credential.Source, "lookup", errors.Wrap(err, "decode response"))
	}
	if !result.Exists {
		return er.NewAuthenticationError(credential.Source, "lookup",
			fmt.Errorf("account %s unknown to portal", credential.Username))
	}

	return nil
}

// login is stage two. A 2xx alone does not count: both session cookies must be
// present in the response or the session is unusable.
func (a *adapter) login(ctx context.Context, credential *models.Credential, secret string, base *url.URL) ([]*http.Cookie, error) {
	form := url.Values{}
	form.Set("userId", credential.Username)
	form.Set("userPw", secret)
	body := form.Encode()

	resp, err := sources.DoWithRetry(ctx, a.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, base.JoinPath("/api/v1/member/login").String(), strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, a.cfg.TransientRetries)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, er.NewAuthenticationError(credential.Source, "login",
			fmt.Errorf("portal returned status %d", resp.StatusCode))
	}

	cookies := resp.Cookies()
	if !hasCookie(cookies, cookieSession) || !hasCookie(cookies, cookieMember) {
		return nil, er.NewAuthenticationError(credential.Source, "login",
			fmt.Errorf("session cookies missing from login response"))
	}

	return cookies, nil
}

func hasCookie(cookies []*http.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

// Fetch retrieves one export page. The cursor is the page number; an empty cursor
// starts at page one, an empty NextCursor signals the last page.
func (a *adapter) Fetch(ctx context.Context, s interfaces.Session, cursor string) (*interfaces.RawBatch, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "PortalAdapter.Fetch")
	defer span.Finish()
	tracing.TagComponentAdapter(span)
	tracing.TagSource(span, s.Source())

	ps, ok := s.(*session)
	if !ok {
		return nil, errors.New("portal adapter: session from another adapter")
	}

	page := 1
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 1 {
			return nil, errors.Errorf("portal adapter: invalid cursor %q", cursor)
		}
		page = parsed
	}
	span.SetTag("page", page)

	exportURL := ps.base.JoinPath("/api/v1/blacklist/export")
	query := exportURL.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("rows", strconv.Itoa(a.cfg.PageSize))
	exportURL.RawQuery = query.Encode()

	resp, err := sources.DoWithRetry(ctx, a.client, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, exportURL.String(), nil)
		if err != nil {
			return nil, err
		}
		for _, c := range ps.cookies {
			req.AddCookie(c)
		}
		return req, nil
	}, a.cfg.TransientRetries)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		err := er.NewAuthenticationError(s.Source(), "export", fmt.Errorf("portal returned status %d", resp.StatusCode))
		tracing.TraceErr(span, err)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := errors.Errorf("portal export returned status %d", resp.StatusCode)
		tracing.TraceErr(span, err)
		return nil, err
	}

	var result struct {
		Version    string            `json:"version"`
		Rows       []json.RawMessage `json:"rows"`
		Page       int               `json:"page"`
		TotalPages int               `json:"totalPages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "decode export page")
	}

	next := ""
	if result.Page < result.TotalPages {
		next = strconv.Itoa(result.Page + 1)
	}

	span.SetTag("rows", len(result.Rows))
	return &interfaces.RawBatch{
		Rows:       result.Rows,
		Meta:       map[string]string{"version": result.Version},
		NextCursor: next,
	}, nil
}

// Normalize translates positional export rows into reputation entries. Malformed
// rows are dropped with a log line; optional columns stay nil.
func (a *adapter) Normalize(credential *models.Credential, batch *interfaces.RawBatch) ([]*models.ReputationEntry, error) {
	version := batch.Meta["version"]
	if version == "" {
		version = "v2"
	}
	layout, err := layoutFor(version)
	if err != nil {
		return nil, errors.Wrapf(err, "portal adapter: source %s", credential.Source)
	}

	now := time.Now()
	entries := make([]*models.ReputationEntry, 0, len(batch.Rows))
	for _, raw := range batch.Rows {
		var row []interface{}
		if err := json.Unmarshal(raw, &row); err != nil {
			a.log.Warnf("Portal row for source %s is not an array, skipping: %v", credential.Source, err)
			continue
		}
		if err := layout.validate(row); err != nil {
			a.log.Warnf("Portal row for source %s rejected: %v", credential.Source, err)
			continue
		}

		entry := &models.ReputationEntry{
			IP:         stringAt(row, layout.ip),
			Source:     credential.Source,
			Reason:     stringAt(row, layout.reason),
			Confidence: intAt(row, layout.confidence, defaultConfidence),
			RemovalAt:  timeAt(row, layout.removal),
			Active:     true,
			LastSeenAt: now,
			Raw:        models.JSONMap{"version": version, "row": row},
		}
		if detected := timeAt(row, layout.detected); detected != nil {
			entry.DetectedAt = *detected
		} else {
			entry.DetectedAt = now
		}
		if country := stringAt(row, layout.country); country != "" {
			entry.Country = &country
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
