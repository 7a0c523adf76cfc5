package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Credential rotation alert, daily at 07:00
	CronScheduleCredentialAlert string `env:"CRON_SCHEDULE_CREDENTIAL_ALERT" envDefault:"0 0 7 * * *"`
	// Expired reputation sweep, every hour at minute 30
	CronScheduleExpirySweep string `env:"CRON_SCHEDULE_EXPIRY_SWEEP" envDefault:"0 30 * * * *"`
}
