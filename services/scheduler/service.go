package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"

	"github.com/threatgate/threatgate/dto"
	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/enum"
	er "github.com/threatgate/threatgate/internal/errors"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/models"
	"github.com/threatgate/threatgate/internal/tracing"
	"github.com/threatgate/threatgate/internal/utils"
	"github.com/threatgate/threatgate/services/events"
)

const (
	DefaultTickInterval  = 30 * time.Second
	DefaultRunTimeout    = 10 * time.Minute
	DefaultMaxPages      = 200
	DefaultBackoffMin    = time.Minute
	DefaultBackoffMax    = time.Hour
	DefaultBackoffFactor = 2
)

type Config struct {
	TickInterval time.Duration
	RunTimeout   time.Duration
	// MaxPages bounds one run against a provider that never terminates its cursor.
	MaxPages      int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	BackoffFactor float64
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = DefaultBackoffMin
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	return c
}

// sourceState is the in-process run lock for one source. The mutex only guards the
// flag flips, never the run itself, so Trigger can fail fast instead of queueing.
// configFailedAt parks the source after a configuration error; the timer path skips
// a parked source until its credential is updated.
type sourceState struct {
	mu             sync.Mutex
	running        bool
	configFailedAt *time.Time
}

func (s *sourceState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *sourceState) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *sourceState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *sourceState) park(ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configFailedAt = &ts
}

func (s *sourceState) clearPark() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configFailedAt = nil
}

func (s *sourceState) parkedSince() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configFailedAt
}

type schedulerService struct {
	cfg       Config
	vault     interfaces.VaultService
	registry  interfaces.AdapterRegistry
	ingest    interfaces.IngestService
	runs      interfaces.CollectionRunRepository
	decision  interfaces.DecisionService
	publisher interfaces.EventPublisher
	log       logger.Logger

	statesMu sync.Mutex
	states   map[string]*sourceState

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSchedulerService(
	cfg Config,
	vault interfaces.VaultService,
	registry interfaces.AdapterRegistry,
	ingest interfaces.IngestService,
	runs interfaces.CollectionRunRepository,
	decision interfaces.DecisionService,
	publisher interfaces.EventPublisher,
	log logger.Logger,
) interfaces.SchedulerService {
	return &schedulerService{
		cfg:       cfg.withDefaults(),
		vault:     vault,
		registry:  registry,
		ingest:    ingest,
		runs:      runs,
		decision:  decision,
		publisher: publisher,
		log:       log,
		states:    make(map[string]*sourceState),
		stopCh:    make(chan struct{}),
	}
}

func (s *schedulerService) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.dispatchLoop(ctx)
	s.log.Infof("Collection scheduler started, tick interval %s", s.cfg.TickInterval)
	return nil
}

func (s *schedulerService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	s.log.Info("Collection scheduler stopped")
}

func (s *schedulerService) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// dispatchDue starts one run per due source. Sources fail and back off
// independently; a collapsed provider never touches its siblings' schedules.
func (s *schedulerService) dispatchDue(ctx context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SchedulerService.dispatchDue")
	defer span.Finish()

	credentials, err := s.vault.ListEnabled(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("Failed to list enabled credentials: %v", err)
		return
	}

	now := utils.Now()
	for _, credential := range credentials {
		state := s.stateFor(credential.Source)
		if parked := state.parkedSince(); parked != nil {
			// Configuration errors are never retried automatically; an updated
			// credential releases the park.
			if !credential.UpdatedAt.After(*parked) {
				continue
			}
			state.clearPark()
		}
		if !s.isDue(credential, now) {
			continue
		}
		if !state.tryAcquire() {
			continue
		}

		s.wg.Add(1)
		go func(source string) {
			defer s.wg.Done()
			defer tracing.RecoverAndLogToJaeger(s.log)
			s.runOnce(source, enum.TriggerScheduled, utils.GenerateNanoIDWithPrefix("run", 16), state)
		}(credential.Source)
	}
}

// Trigger bypasses the enabled flag so operators can exercise a paused source, but
// it never bypasses the run lock.
func (s *schedulerService) Trigger(ctx context.Context, source string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SchedulerService.Trigger")
	defer span.Finish()
	tracing.TagSource(span, source)

	credential, err := s.vault.Get(ctx, source)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if credential == nil {
		tracing.TraceErr(span, er.ErrCredentialNotFound)
		return "", er.ErrCredentialNotFound
	}

	state := s.stateFor(source)
	if !state.tryAcquire() {
		tracing.TraceErr(span, er.ErrRunInProgress)
		return "", er.ErrRunInProgress
	}

	runID := utils.GenerateNanoIDWithPrefix("run", 16)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer tracing.RecoverAndLogToJaeger(s.log)
		s.runOnce(source, enum.TriggerManual, runID, state)
	}()

	return runID, nil
}

func (s *schedulerService) Status(ctx context.Context) ([]interfaces.SourceStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SchedulerService.Status")
	defer span.Finish()

	credentials, err := s.vault.ListAll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	now := utils.Now()
	statuses := make([]interfaces.SourceStatus, 0, len(credentials))
	for _, credential := range credentials {
		status := interfaces.SourceStatus{
			Source:              credential.Source,
			State:               enum.CollectionIdle,
			Enabled:             credential.Enabled,
			LastRunAt:           credential.LastRunAt,
			LastRunSuccess:      credential.LastRunSuccess,
			ConsecutiveFailures: credential.ConsecutiveFailures,
		}
		if credential.Enabled {
			next := s.nextEligibleAt(credential)
			status.NextRunAt = &next
		}
		state := s.stateFor(credential.Source)
		parked := state.parkedSince()
		if state.isRunning() {
			status.State = enum.CollectionRunning
		} else if parked != nil && !credential.UpdatedAt.After(*parked) {
			status.State = enum.CollectionConfigError
			status.NextRunAt = nil
		} else if credential.ConsecutiveFailures > 0 && credential.Enabled && s.nextEligibleAt(credential).After(now) {
			status.State = enum.CollectionBackoff
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *schedulerService) stateFor(source string) *sourceState {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	state, ok := s.states[source]
	if !ok {
		state = &sourceState{}
		s.states[source] = state
	}
	return state
}

func (s *schedulerService) isDue(credential *models.Credential, now time.Time) bool {
	return !s.nextEligibleAt(credential).After(now)
}

// nextEligibleAt is the regular interval after a success and a capped exponential
// delay after failures, whichever is later.
func (s *schedulerService) nextEligibleAt(credential *models.Credential) time.Time {
	if credential.LastRunAt == nil {
		return time.Time{}
	}
	next := credential.LastRunAt.Add(time.Duration(credential.IntervalSeconds) * time.Second)
	if credential.ConsecutiveFailures > 0 {
		retryAt := credential.LastRunAt.Add(s.backoffDelay(credential.ConsecutiveFailures))
		if retryAt.After(next) {
			next = retryAt
		}
	}
	return next
}

func (s *schedulerService) backoffDelay(consecutiveFailures int) time.Duration {
	b := &backoff.Backoff{
		Min:    s.cfg.BackoffMin,
		Max:    s.cfg.BackoffMax,
		Factor: s.cfg.BackoffFactor,
		Jitter: false,
	}
	return b.ForAttempt(float64(consecutiveFailures - 1))
}

// runOnce executes one full collection for a source and records the outcome no
// matter how the run ends. The caller must already hold the source's run lock.
func (s *schedulerService) runOnce(source string, trigger enum.TriggerKind, runID string, state *sourceState) {
	defer state.release()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	span, ctx := opentracing.StartSpanFromContext(ctx, "SchedulerService.runOnce")
	defer span.Finish()
	tracing.TagSource(span, source)
	span.SetTag("trigger", trigger.String())

	startedAt := utils.Now()
	summary, runErr := s.collect(ctx, source)
	duration := time.Since(startedAt)

	run := &models.CollectionRun{
		ID:            runID,
		Source:        source,
		Trigger:       trigger,
		StartedAt:     startedAt,
		DurationMS:    duration.Milliseconds(),
		Success:       runErr == nil,
		ItemsTotal:    summary.Total,
		ItemsNew:      summary.New,
		ItemsUpdated:  summary.Updated,
		ItemsRejected: summary.Rejected,
	}
	if runErr != nil {
		tracing.TraceErr(span, runErr)
		run.ErrorMessage = runErr.Error()
	}

	if er.IsConfiguration(runErr) {
		state.park(startedAt)
		s.log.Errorf("Source %s parked after configuration error, update the credential to resume collection: %v", source, runErr)
	} else if runErr == nil {
		state.clearPark()
	}

	// Bookkeeping uses a fresh context so a run that died on its deadline still
	// leaves a record behind.
	recordCtx, recordCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer recordCancel()
	recordCtx = opentracing.ContextWithSpan(recordCtx, span)

	if err := s.runs.Create(recordCtx, run); err != nil {
		s.log.Errorf("Failed to record collection run %s for source %s: %v", runID, source, err)
	}
	if err := s.vault.RecordRunOutcome(recordCtx, source, runErr == nil, startedAt); err != nil {
		s.log.Errorf("Failed to record run outcome for source %s: %v", source, err)
	}

	if summary.New > 0 || summary.Updated > 0 {
		s.decision.Invalidate(recordCtx)
		s.publish(recordCtx, events.RoutingKeyListChanged, dto.ListChanged{
			List:      "reputation",
			Source:    source,
			ChangedAt: utils.Now(),
		})
	}

	s.publish(recordCtx, events.RoutingKeyRunCompleted, dto.CollectionRunCompleted{
		RunID:        runID,
		Source:       source,
		Success:      runErr == nil,
		StartedAt:    startedAt,
		DurationMS:   run.DurationMS,
		ItemsTotal:   summary.Total,
		ItemsNew:     summary.New,
		ItemsUpdated: summary.Updated,
		ErrorMessage: run.ErrorMessage,
	})

	if runErr != nil {
		s.log.Errorf("Collection run %s for source %s failed after %s: %v", runID, source, duration, runErr)
		return
	}
	s.log.Infof("Collection run %s for source %s finished in %s: %d total, %d new, %d updated, %d rejected",
		runID, source, duration, summary.Total, summary.New, summary.Updated, summary.Rejected)
}

// collect drives the adapter through authenticate, paginate and ingest for one run.
func (s *schedulerService) collect(ctx context.Context, source string) (interfaces.BatchSummary, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SchedulerService.collect")
	defer span.Finish()
	tracing.TagSource(span, source)

	var summary interfaces.BatchSummary

	credential, err := s.vault.Get(ctx, source)
	if err != nil {
		return summary, err
	}
	if credential == nil {
		return summary, er.ErrCredentialNotFound
	}

	adapter, err := s.registry.Resolve(credential.Kind)
	if err != nil {
		return summary, err
	}

	secret, err := s.vault.DecryptSecret(ctx, credential)
	if err != nil {
		return summary, err
	}

	session, err := adapter.Authenticate(ctx, credential, secret)
	if err != nil {
		return summary, err
	}

	cursor := ""
	for page := 0; page < s.cfg.MaxPages; page++ {
		batch, err := adapter.Fetch(ctx, session, cursor)
		if err != nil {
			return summary, err
		}

		entries, err := adapter.Normalize(credential, batch)
		if err != nil {
			return summary, err
		}

		if len(entries) > 0 {
			batchSummary, err := s.ingest.IngestBatch(ctx, source, entries)
			summary.Add(batchSummary)
			if err != nil {
				return summary, err
			}
		}

		if batch.NextCursor == "" {
			return summary, nil
		}
		cursor = batch.NextCursor
	}

	s.log.Warnf("Source %s run stopped at page cap %d with cursor still open", source, s.cfg.MaxPages)
	return summary, fmt.Errorf("source %s exceeded page cap %d", source, s.cfg.MaxPages)
}

func (s *schedulerService) publish(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, routingKey, payload); err != nil {
		s.log.Warnf("Failed to publish %s event: %v", routingKey, err)
	}
}
