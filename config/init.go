package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/threatgate/threatgate/internal/logger"
	"github.com/threatgate/threatgate/internal/tracing"
)

type Config struct {
	AppConfig       *AppConfig
	Logger          *logger.Config
	Tracing         *tracing.JaegerConfig
	DatabaseConfig  *DatabaseConfig
	VaultConfig     *VaultConfig
	CollectorConfig *CollectorConfig
	CronConfig      *CronConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:       &AppConfig{},
		Logger:          &logger.Config{},
		Tracing:         &tracing.JaegerConfig{},
		DatabaseConfig:  &DatabaseConfig{},
		VaultConfig:     &VaultConfig{},
		CollectorConfig: &CollectorConfig{},
		CronConfig:      &CronConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading threatgate config: %v", err)
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, err
	}

	return config, nil
}
