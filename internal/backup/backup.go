// Package backup uploads encrypted account snapshots to S3-compatible
// storage and restores them.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/compostdash/internal/model"
	"github.com/dukerupert/compostdash/internal/snapshot"
	"github.com/dukerupert/compostdash/internal/store"
)

var ErrNotConfigured = errors.New("backup not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3         S3Config
	Passphrase string
	// Prefix is prepended to object keys.
	Prefix string
	// Interval between scheduled backups. Zero disables the schedule.
	Interval      time.Duration
	RetentionDays int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// Manager runs encrypted snapshot backups.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status

	accounts *store.AccountStore
	backups  *store.BackupStore
	client   s3Client
	logger   *slog.Logger

	// run serializes backups and restores.
	run sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, accounts *store.AccountStore, backups *store.BackupStore, logger *slog.Logger) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = "snapshots/"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:      cfg,
		accounts: accounts,
		backups:  backups,
		logger:   logger,
		status:   Status{State: StateDisabled},
	}
	if cfg.S3.complete() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether storage and a passphrase are configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start runs scheduled backups until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.client == nil || m.cfg.Interval <= 0 {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
				if err := m.Cleanup(ctx); err != nil {
					m.logger.Error("backup cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) fail(ctx context.Context, id int64, err error) error {
	m.backups.UpdateStatus(ctx, id, model.BackupStatusFailed, err.Error())
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return err
}

// RunNow exports every account, encrypts the snapshot and uploads it.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	prefix := m.cfg.Prefix
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrNotConfigured
	}

	m.run.Lock()
	defer m.run.Unlock()

	m.setStatus(Status{State: StateRunning, InProgress: true})

	key := prefix + "accounts-" + time.Now().UTC().Format("2006-01-02T150405.000Z") + ".json.enc"
	record, err := m.backups.Create(ctx, key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	snap, err := snapshot.Export(ctx, m.accounts)
	if err != nil {
		return nil, m.fail(ctx, record.ID, err)
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap); err != nil {
		return nil, m.fail(ctx, record.ID, err)
	}
	payload, err := Encrypt(buf.Bytes(), passphrase)
	if err != nil {
		return nil, m.fail(ctx, record.ID, fmt.Errorf("encrypt: %w", err))
	}

	m.backups.UpdateStatus(ctx, record.ID, model.BackupStatusUploading, "")

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return nil, m.fail(ctx, record.ID, fmt.Errorf("upload to s3: %w", err))
	}

	if err := m.backups.UpdateCompleted(ctx, record.ID, int64(len(payload)), len(snap.Users)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup uploaded", "key", key, "accounts", len(snap.Users), "bytes", len(payload))

	return m.backups.GetByID(ctx, record.ID)
}

// Restore downloads and decrypts a snapshot and imports its accounts.
// Accounts that already exist are left as they are.
func (m *Manager) Restore(ctx context.Context, key string) (snapshot.ImportResult, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	prefix := m.cfg.Prefix
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return snapshot.ImportResult{}, ErrNotConfigured
	}
	if !strings.HasPrefix(key, prefix) {
		key = prefix + key
	}

	m.run.Lock()
	defer m.run.Unlock()

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return snapshot.ImportResult{}, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	payload, err := io.ReadAll(result.Body)
	if err != nil {
		return snapshot.ImportResult{}, fmt.Errorf("read backup: %w", err)
	}
	plain, err := Decrypt(payload, passphrase)
	if err != nil {
		return snapshot.ImportResult{}, fmt.Errorf("decrypt backup: %w", err)
	}
	snap, err := snapshot.Decode(bytes.NewReader(plain))
	if err != nil {
		return snapshot.ImportResult{}, err
	}

	res, err := snapshot.Import(ctx, m.accounts, snap)
	if err != nil {
		return res, err
	}
	m.logger.Info("backup restored", "key", key, "created", res.Created, "skipped", res.Skipped)
	return res, nil
}

// List returns recent backup records.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	return m.backups.List(ctx, limit)
}

// Cleanup deletes backups older than the retention period.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	retention := m.cfg.RetentionDays
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := time.Now().UTC().AddDate(0, 0, -retention)
	keys, err := m.backups.DeleteOlderThan(ctx, before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	return nil
}
