package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/threatgate/threatgate/config"
	"github.com/threatgate/threatgate/interfaces"
	cron_config "github.com/threatgate/threatgate/internal/cron/config"
	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/tracing"
	"github.com/threatgate/threatgate/internal/utils"
)

// CONSTANTS
const (
	// GroupThreatgate is the group for threatgate maintenance jobs
	GroupThreatgate = "threatgate"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupThreatgate: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg        *config.Config
	log        logger.Logger
	cron       *cronv3.Cron
	k8s        kubernetes.Interface
	stopCh     chan struct{}
	jobIDs     map[string]cronv3.EntryID
	vault      interfaces.VaultService
	reputation interfaces.ReputationRepository
	decision   interfaces.DecisionService
}

func NewCronManager(
	cfg *config.Config,
	log logger.Logger,
	k8s kubernetes.Interface,
	vault interfaces.VaultService,
	reputation interfaces.ReputationRepository,
	decision interfaces.DecisionService,
) *CronManager {
	return &CronManager{
		cfg:        cfg,
		log:        log,
		k8s:        k8s,
		stopCh:     make(chan struct{}),
		jobIDs:     make(map[string]cronv3.EntryID),
		vault:      vault,
		reputation: reputation,
		decision:   decision,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	// If k8s client is nil or we're in local development, start in local mode
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	// Create the leader election lock
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "threatgate-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	// Channel to track leader election errors
	errCh := make(chan error, 1)

	// Start leader election
	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(context.Background())
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
		// Leader election seems to be working, continue normally
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	// Load cron config from environment variables
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Credential rotation alert job
	if cronConfig.CronScheduleCredentialAlert != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleCredentialAlert, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupThreatgate].Lock()
			defer jobLocks.locks[GroupThreatgate].Unlock()
			cm.alertStaleCredentials()
		})
		if err != nil {
			cm.log.Fatalf("Could not add credential alert cron job: %v", err)
		}
		cm.jobIDs["credential_alert"] = id
		cm.log.Infof("Registered credential alert job with schedule: %s", cronConfig.CronScheduleCredentialAlert)
	}

	// Expired reputation sweep job, opt-in since read paths already apply expiry
	if cm.cfg.CronConfig.ExpirySweepEnabled && cronConfig.CronScheduleExpirySweep != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleExpirySweep, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupThreatgate].Lock()
			defer jobLocks.locks[GroupThreatgate].Unlock()
			cm.sweepExpiredEntries()
		})
		if err != nil {
			cm.log.Fatalf("Could not add expiry sweep cron job: %v", err)
		}
		cm.jobIDs["expiry_sweep"] = id
		cm.log.Infof("Registered expiry sweep job with schedule: %s", cronConfig.CronScheduleExpirySweep)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// alertStaleCredentials logs every credential whose secret has not been rotated
// within the alert window so operators rotate it before the provider locks it out.
func (cm *CronManager) alertStaleCredentials() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.alertStaleCredentials")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	days := cm.cfg.CronConfig.CredentialAlertDays
	credentials, err := cm.vault.ListExpiring(ctx, days)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list stale credentials: %v", err)
		return
	}

	if len(credentials) == 0 {
		cm.log.Info("No credentials due for rotation")
		return
	}

	for _, credential := range credentials {
		rotated := "never"
		if credential.SecretRotatedAt != nil {
			rotated = credential.SecretRotatedAt.Format(time.RFC3339)
		}
		cm.log.Warnf("Credential for source %s not rotated in %d days (last rotation: %s)",
			credential.Source, days, rotated)
	}
}

// sweepExpiredEntries flips entries past their removal date to inactive. Decisions
// are already correct without it; the sweep just keeps stats and exports small.
func (cm *CronManager) sweepExpiredEntries() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.sweepExpiredEntries")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	swept, err := cm.reputation.DeactivateExpired(ctx, utils.Now())
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to sweep expired reputation entries: %v", err)
		return
	}
	if swept == 0 {
		return
	}

	cm.log.Infof("Deactivated %d expired reputation entries", swept)
	cm.decision.Invalidate(ctx)
}
