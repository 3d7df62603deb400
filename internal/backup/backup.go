// Package backup writes encrypted snapshots of the chorechart database to an
// S3-compatible bucket and restores them.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	_ "modernc.org/sqlite"
)

const keyPrefix = "backups/"

var (
	ErrNoPassphrase = errors.New("backup passphrase not set")
	ErrNotFound     = errors.New("backup not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Object is one stored snapshot.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type Manager struct {
	client     s3Client
	bucket     string
	passphrase string
	logger     *slog.Logger
	now        func() time.Time
}

func NewManager(client s3Client, bucket, passphrase string, logger *slog.Logger) *Manager {
	return &Manager{
		client:     client,
		bucket:     bucket,
		passphrase: passphrase,
		logger:     logger.With("component", "backup"),
		now:        time.Now,
	}
}

// Run snapshots db with VACUUM INTO, encrypts the snapshot and uploads it.
// It returns the object key.
func (m *Manager) Run(ctx context.Context, db *sql.DB) (string, error) {
	if m.passphrase == "" {
		return "", ErrNoPassphrase
	}

	tmpDir, err := os.MkdirTemp("", "chorechart-backup-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return "", fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Encrypt(plaintext, m.passphrase)
	if err != nil {
		return "", fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := keyPrefix + "chorechart-" + m.now().UTC().Format("2006-01-02T150405Z") + ".db.enc"
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))
	return key, nil
}

// List returns the stored snapshots, oldest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, o := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	// Keys embed the UTC timestamp, so lexical order is age order.
	slices.SortFunc(objects, func(a, b Object) int { return strings.Compare(a.Key, b.Key) })
	return objects, nil
}

// Prune deletes snapshots last modified more than retention ago and
// returns how many were removed. A failed delete is logged and skipped.
func (m *Manager) Prune(ctx context.Context, retention time.Duration) (int, error) {
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-retention)
	removed := 0
	for _, o := range objects {
		if !o.LastModified.Before(cutoff) {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Warn("failed to delete old backup", "key", o.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Restore downloads and decrypts the snapshot at key, checks its integrity
// and writes it to dst. dst must not exist yet.
func (m *Manager) Restore(ctx context.Context, key, dst string) error {
	if m.passphrase == "" {
		return ErrNoPassphrase
	}
	if !strings.HasPrefix(key, keyPrefix) {
		key = keyPrefix + key
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("restore target %s already exists", dst)
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	plaintext, err := Decrypt(buf.Bytes(), m.passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".restoring"
	if err := os.WriteFile(tmp, plaintext, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move snapshot into place: %w", err)
	}

	m.logger.Info("backup restored", "key", key, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
