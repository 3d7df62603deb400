package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is read from CHORECHART_* environment variables.
type Config struct {
	Port      string `env:"CHORECHART_PORT" envDefault:"8080"`
	DBPath    string `env:"CHORECHART_DB_PATH" envDefault:"chorechart.db"`
	LogLevel  string `env:"CHORECHART_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CHORECHART_LOG_FORMAT" envDefault:"text"`
	ProofDir  string `env:"CHORECHART_PROOF_DIR" envDefault:"proofs"`
	Seed      bool   `env:"CHORECHART_SEED" envDefault:"true"`

	// Comma separated hosts allowed to open the websocket. Empty allows any.
	WSOrigins []string `env:"CHORECHART_WS_ORIGINS"`

	// Encrypts database snapshots written by the backup command.
	BackupPassphrase    string `env:"CHORECHART_BACKUP_PASSPHRASE"`
	BackupRetentionDays int    `env:"CHORECHART_BACKUP_RETENTION_DAYS" envDefault:"30"`

	S3   S3Config
	Push PushConfig
}

// S3Config moves proof photos to a bucket when Bucket and both keys are set.
// Database backups go to the same bucket.
type S3Config struct {
	Endpoint  string `env:"CHORECHART_S3_ENDPOINT"`
	Bucket    string `env:"CHORECHART_S3_BUCKET"`
	Region    string `env:"CHORECHART_S3_REGION" envDefault:"us-east-1"`
	AccessKey string `env:"CHORECHART_S3_ACCESS_KEY"`
	SecretKey string `env:"CHORECHART_S3_SECRET_KEY"`
}

// PushConfig enables web push when both VAPID keys are set.
type PushConfig struct {
	VAPIDPublicKey  string `env:"CHORECHART_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"CHORECHART_VAPID_PRIVATE_KEY"`
	Subscriber      string `env:"CHORECHART_VAPID_SUBSCRIBER" envDefault:"mailto:admin@chorechart.local"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}
