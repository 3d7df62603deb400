package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/chorechart/internal/backup"
	"github.com/dukerupert/chorechart/internal/config"
	"github.com/dukerupert/chorechart/internal/database"
	"github.com/dukerupert/chorechart/internal/logging"
	"github.com/dukerupert/chorechart/internal/proof"
	"github.com/dukerupert/chorechart/internal/push"
	"github.com/dukerupert/chorechart/internal/server"
)

const usage = `usage: chorechart [command]

commands:
  (none)               run the server
  vapid-keys           print a new VAPID key pair
  backup               upload an encrypted database snapshot and prune old ones
  restore <key> <dst>  download a snapshot and write it to dst
`

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("CHORECHART_VAPID_PUBLIC_KEY=%s\nCHORECHART_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "":
		err = run(cfg, logger)
	case "backup":
		err = runBackup(cfg, logger)
	case "restore":
		if len(os.Args) != 4 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		err = runRestore(cfg, logger, os.Args[2], os.Args[3])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Seed {
		seeded, err := database.Seed(db)
		if err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
		if seeded {
			logger.Info("seeded default household", "parent_pin", database.DefaultParentPIN)
		}
	}

	proofs, err := newProofStorage(cfg, logger)
	if err != nil {
		return err
	}

	pushSvc := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
	if !pushSvc.Enabled() {
		logger.Info("push notifications disabled, no VAPID keys configured")
	}

	srv := server.New(db, server.Options{
		Proofs:    proofs,
		Push:      pushSvc,
		WSOrigins: cfg.WSOrigins,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.Notifier().Start()
	defer srv.Notifier().Stop()

	go srv.RateLimiter().RunCleanup(ctx, 5*time.Minute)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("chorechart running", "addr", "http://localhost"+cfg.Addr(), "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func s3Config(cfg config.Config) proof.S3Config {
	return proof.S3Config{
		Endpoint:  cfg.S3.Endpoint,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	}
}

func newBackupManager(cfg config.Config, logger *slog.Logger) (*backup.Manager, error) {
	s3cfg := s3Config(cfg)
	if !s3cfg.Enabled() {
		return nil, errors.New("backups need CHORECHART_S3_BUCKET, CHORECHART_S3_ACCESS_KEY and CHORECHART_S3_SECRET_KEY")
	}
	if cfg.BackupPassphrase == "" {
		return nil, backup.ErrNoPassphrase
	}
	return backup.NewManager(proof.NewS3Client(s3cfg), s3cfg.Bucket, cfg.BackupPassphrase, logger), nil
}

func runBackup(cfg config.Config, logger *slog.Logger) error {
	m, err := newBackupManager(cfg, logger)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key, err := m.Run(ctx, db)
	if err != nil {
		return err
	}
	fmt.Println(key)

	if cfg.BackupRetentionDays > 0 {
		removed, err := m.Prune(ctx, time.Duration(cfg.BackupRetentionDays)*24*time.Hour)
		if err != nil {
			return fmt.Errorf("prune backups: %w", err)
		}
		logger.Info("pruned old backups", "removed", removed, "retention_days", cfg.BackupRetentionDays)
	}
	return nil
}

func runRestore(cfg config.Config, logger *slog.Logger, key, dst string) error {
	m, err := newBackupManager(cfg, logger)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return m.Restore(ctx, key, dst)
}

func newProofStorage(cfg config.Config, logger *slog.Logger) (proof.Storage, error) {
	s3cfg := s3Config(cfg)
	if s3cfg.Enabled() {
		logger.Info("storing proofs in S3", "bucket", s3cfg.Bucket, "endpoint", s3cfg.Endpoint)
		return proof.NewS3Storage(s3cfg), nil
	}

	ls, err := proof.NewLocalStorage(cfg.ProofDir)
	if err != nil {
		return nil, err
	}
	logger.Info("storing proofs locally", "dir", cfg.ProofDir)
	return ls, nil
}
