package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "chorechart.db" {
		t.Errorf("db path = %q, want chorechart.db", cfg.DBPath)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log = %q/%q, want info/text", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ProofDir != "proofs" {
		t.Errorf("proof dir = %q, want proofs", cfg.ProofDir)
	}
	if !cfg.Seed {
		t.Error("seed should default to true")
	}
	if cfg.S3.Region != "us-east-1" {
		t.Errorf("s3 region = %q, want us-east-1", cfg.S3.Region)
	}
	if cfg.BackupRetentionDays != 30 {
		t.Errorf("backup retention = %d, want 30", cfg.BackupRetentionDays)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHORECHART_PORT", "9090")
	t.Setenv("CHORECHART_SEED", "false")
	t.Setenv("CHORECHART_S3_BUCKET", "family-proofs")
	t.Setenv("CHORECHART_WS_ORIGINS", "kitchen.local,tablet.local")
	t.Setenv("CHORECHART_VAPID_PUBLIC_KEY", "pub")
	t.Setenv("CHORECHART_BACKUP_PASSPHRASE", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.Seed {
		t.Error("seed should be disabled")
	}
	if cfg.S3.Bucket != "family-proofs" {
		t.Errorf("bucket = %q", cfg.S3.Bucket)
	}
	if len(cfg.WSOrigins) != 2 || cfg.WSOrigins[1] != "tablet.local" {
		t.Errorf("origins = %v", cfg.WSOrigins)
	}
	if cfg.Push.VAPIDPublicKey != "pub" {
		t.Errorf("vapid public key = %q", cfg.Push.VAPIDPublicKey)
	}
	if cfg.BackupPassphrase != "hunter2" {
		t.Errorf("backup passphrase = %q", cfg.BackupPassphrase)
	}
}

func TestLoadError(t *testing.T) {
	t.Setenv("CHORECHART_SEED", "maybe")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
