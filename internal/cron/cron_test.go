package cron

import (
	"os"
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"k8s.io/client-go/kubernetes"

	"github.com/threatgate/threatgate/config"
	cron_config "github.com/threatgate/threatgate/internal/cron/config"
	"github.com/threatgate/threatgate/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig: &config.AppConfig{},
		Logger: &logger.Config{
			LogLevel: "info",
		},
		CronConfig: &config.CronConfig{
			CredentialAlertDays: 90,
		},
	}
}

func TestNewCronManager(t *testing.T) {
	// Arrange
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	// Act
	cm := NewCronManager(cfg, log, k8s, nil, nil, nil)

	// Assert
	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	// Set environment variables for testing
	os.Setenv("CRON_SCHEDULE_HEARTBEAT", "0 * * * * *")
	os.Setenv("CRON_SCHEDULE_CREDENTIAL_ALERT", "0 0 7 * * *")
	os.Setenv("CRON_SCHEDULE_EXPIRY_SWEEP", "0 30 * * * *")
	defer os.Unsetenv("CRON_SCHEDULE_HEARTBEAT")
	defer os.Unsetenv("CRON_SCHEDULE_CREDENTIAL_ALERT")
	defer os.Unsetenv("CRON_SCHEDULE_EXPIRY_SWEEP")

	// Arrange
	cfg := testConfig()
	cfg.CronConfig.ExpirySweepEnabled = true
	log := getLogger()
	k8s := &mockKubernetesInterface{}
	cm := NewCronManager(cfg, log, k8s, nil, nil, nil)

	c := cronv3.New(cronv3.WithSeconds())

	// Act
	cm.registerJobs(c)

	// Assert
	assert.Equal(t, 3, len(cm.jobIDs))
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "credential_alert")
	assert.Contains(t, cm.jobIDs, "expiry_sweep")
}

func TestCronManager_RegisterJobs_SweepDisabledByDefault(t *testing.T) {
	// Arrange
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}
	cm := NewCronManager(cfg, log, k8s, nil, nil, nil)

	c := cronv3.New(cronv3.WithSeconds())

	// Act - default schedules apply, sweep stays off without the toggle
	cm.registerJobs(c)

	// Assert
	assert.Equal(t, 2, len(cm.jobIDs))
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "credential_alert")
	assert.NotContains(t, cm.jobIDs, "expiry_sweep")
}

func TestCronManager_Stop(t *testing.T) {
	// Arrange
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}
	cm := NewCronManager(cfg, log, k8s, nil, nil, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	// Act
	cm.Stop()

	// Assert
	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}

func TestCronConfig_Defaults(t *testing.T) {
	// Arrange: the three schedules must parse as six-field cron expressions
	var cronConfig cron_config.Config
	cronConfig.CronScheduleHeartbeat = "0 * * * * *"
	cronConfig.CronScheduleCredentialAlert = "0 0 7 * * *"
	cronConfig.CronScheduleExpirySweep = "0 30 * * * *"

	c := cronv3.New(cronv3.WithSeconds())

	// Act / Assert
	_, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {})
	assert.NoError(t, err)
	_, err = c.AddFunc(cronConfig.CronScheduleCredentialAlert, func() {})
	assert.NoError(t, err)
	_, err = c.AddFunc(cronConfig.CronScheduleExpirySweep, func() {})
	assert.NoError(t, err)
}
