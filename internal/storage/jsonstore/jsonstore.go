// Package jsonstore keeps cooldown records in a single JSON file.
//
// Records live in memory behind one mutex, which makes every conditional write
// atomic within the process. The file is rewritten atomically (temp file plus
// rename) on a timer and on Close. It suits single-process deployments; use
// the sqlite store when several bots share state.
package jsonstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/keshon/interkit/internal/cooldown"
	"github.com/rs/zerolog"
)

// Config holds options for a Store.
type Config struct {
	// FilePath is the JSON file. An empty path keeps records in memory only.
	FilePath         string
	AutoSaveInterval time.Duration
	BackupCount      int
	Logger           zerolog.Logger
}

// DefaultConfig returns the default configuration for filePath.
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		BackupCount:      3,
		Logger:           zerolog.Nop(),
	}
}

type entry struct {
	Expires int64 `json:"expires"`
	Count   int   `json:"count"`
}

// Store implements cooldown.Store.
type Store struct {
	cfg *Config

	mu           sync.Mutex
	data         map[string]entry
	lastChecksum string
	closed       bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ cooldown.Store = (*Store)(nil)

var errClosed = errors.New("jsonstore is closed")

// Open opens the store with the default configuration.
func Open(filePath string) (*Store, error) {
	return OpenWithConfig(DefaultConfig(filePath))
}

// OpenWithConfig opens the store, loading the file when it exists and
// creating it otherwise.
func OpenWithConfig(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	s := &Store{cfg: cfg, data: make(map[string]entry)}
	if cfg.FilePath == "" {
		s.cancel = func() {}
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	switch _, err := os.Stat(cfg.FilePath); {
	case errors.Is(err, os.ErrNotExist):
		if err := s.writeFileAtomic([]byte("{}")); err != nil {
			return nil, fmt.Errorf("create empty json file: %w", err)
		}
	case err == nil:
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.FilePath, err)
		}
	default:
		return nil, fmt.Errorf("stat %s: %w", cfg.FilePath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if cfg.AutoSaveInterval > 0 {
		s.wg.Add(1)
		go s.autoSave(ctx)
	}
	return s, nil
}

// Close stops the autosave loop and writes the final state.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return s.Save()
}

func (s *Store) FindAll(ctx context.Context, f cooldown.Filter) ([]cooldown.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]cooldown.Record, 0, len(s.data))
	for key, e := range s.data {
		if r := toRecord(key, e); f.Match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) FindByID(ctx context.Context, key string) (cooldown.Record, error) {
	if err := ctx.Err(); err != nil {
		return cooldown.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return cooldown.Record{}, cooldown.ErrNotFound
	}
	return toRecord(key, e), nil
}

func (s *Store) Create(ctx context.Context, r cooldown.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	if _, ok := s.data[r.Key]; ok {
		return cooldown.ErrExists
	}
	s.data[r.Key] = entry{Expires: r.Expires.UnixMilli(), Count: r.Count}
	return nil
}

func (s *Store) IncrementCount(ctx context.Context, prev cooldown.Record) (bool, error) {
	return s.swap(ctx, prev, func(e entry) entry {
		e.Count++
		return e
	})
}

func (s *Store) UpdateExpiryAndCount(ctx context.Context, prev cooldown.Record, expires time.Time, count int) (bool, error) {
	return s.swap(ctx, prev, func(entry) entry {
		return entry{Expires: expires.UnixMilli(), Count: count}
	})
}

func (s *Store) DeleteByID(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	delete(s.data, key)
	return nil
}

func (s *Store) DeleteIf(ctx context.Context, prev cooldown.Record) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, errClosed
	}
	e, ok := s.data[prev.Key]
	if !ok || e.Expires != prev.Expires.UnixMilli() {
		return false, nil
	}
	delete(s.data, prev.Key)
	return true, nil
}

func (s *Store) DeleteWhere(ctx context.Context, f cooldown.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errClosed
	}
	n := 0
	for key, e := range s.data {
		if f.Match(toRecord(key, e)) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

// swap applies fn to the stored entry when it still matches prev.
func (s *Store) swap(ctx context.Context, prev cooldown.Record, fn func(entry) entry) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, errClosed
	}
	e, ok := s.data[prev.Key]
	if !ok || e.Count != prev.Count || e.Expires != prev.Expires.UnixMilli() {
		return false, nil
	}
	s.data[prev.Key] = fn(e)
	return true, nil
}

func toRecord(key string, e entry) cooldown.Record {
	return cooldown.Record{Key: key, Expires: time.UnixMilli(e.Expires).UTC(), Count: e.Count}
}

// Save writes the current state to disk now. It is a no-op for in-memory
// stores and when nothing changed since the last save.
func (s *Store) Save() error {
	if s.cfg.FilePath == "" {
		return nil
	}
	s.mu.Lock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	checksum := checksum(data)
	s.mu.Lock()
	unchanged := checksum == s.lastChecksum
	s.mu.Unlock()
	if unchanged {
		return nil
	}

	if s.cfg.BackupCount > 0 {
		if err := s.createBackup(); err != nil {
			s.cfg.Logger.Warn().Err(err).Msg("failed to create backup")
		}
	}
	if err := s.writeFileAtomic(data); err != nil {
		return err
	}
	if err := s.verifyFile(data); err != nil {
		return fmt.Errorf("file verification failed: %w", err)
	}

	s.mu.Lock()
	s.lastChecksum = checksum
	s.mu.Unlock()
	return nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	data := make(map[string]entry)
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("invalid json format: %w", err)
	}

	s.mu.Lock()
	s.data = data
	s.lastChecksum = checksum(raw)
	s.mu.Unlock()
	return nil
}

func (s *Store) writeFileAtomic(data []byte) error {
	tmp := s.cfg.FilePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, s.cfg.FilePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) verifyFile(expected []byte) error {
	actual, err := os.ReadFile(s.cfg.FilePath)
	if err != nil {
		return fmt.Errorf("read file for verification: %w", err)
	}
	if checksum(actual) != checksum(expected) {
		return errors.New("file checksum mismatch")
	}
	return nil
}

func (s *Store) createBackup() error {
	src, err := os.Open(s.cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup.%s", s.cfg.FilePath, time.Now().Format("20060102_150405.000"))
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	s.cleanupOldBackups()
	return nil
}

// cleanupOldBackups keeps the newest BackupCount backups. Backup names sort
// chronologically, so no stat calls are needed.
func (s *Store) cleanupOldBackups() {
	matches, err := filepath.Glob(s.cfg.FilePath + ".backup.*")
	if err != nil || len(matches) <= s.cfg.BackupCount {
		return
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-s.cfg.BackupCount] {
		os.Remove(old)
	}
}

func (s *Store) autoSave(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.AutoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Save(); err != nil {
				s.cfg.Logger.Error().Err(err).Msg("auto-save failed")
			}
		}
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
