// Package filestore persists uploaded bytes under one directory per session.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/pkg/safename"
)

const (
	quarantineDir   = ".quarantine"
	maxNameAttempts = 16
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

type SavedFile struct {
	AbsPath    string
	RelPath    string
	StoredName string
	Size       int64
}

type FileInfo struct {
	Size    int64
	ModTime time.Time
}

type PurgeReport struct {
	Removed []string
	Skipped []string
	Failed  map[string]error
}

type Store struct {
	fs    afero.Fs
	root  string
	locks *sessionLocks
	now   func() time.Time
}

func New(fsys afero.Fs, root string) *Store {
	return &Store{
		fs:    fsys,
		root:  filepath.Clean(root),
		locks: newSessionLocks(),
		now:   time.Now,
	}
}

// NewOS returns a store rooted at root on the local filesystem.
func NewOS(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir failed: %w", err)
	}
	store := New(afero.NewOsFs(), abs)
	if err := store.fs.MkdirAll(abs, 0o755); err != nil {
		return nil, classify("create upload dir", abs, err)
	}
	return store, nil
}

func (s *Store) Root() string {
	return s.root
}

// Save writes data into the session directory under a timestamp-prefixed,
// sanitized name. Existing files are never overwritten.
func (s *Store) Save(ctx context.Context, sessionID string, data []byte, originalName, mimeType string) (*SavedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !sessionIDPattern.MatchString(sessionID) {
		return nil, fmt.Errorf("save file: %w: session %q", ErrInvalidPath, sessionID)
	}

	lock := s.locks.get(sessionID)
	lock.RLock()
	defer lock.RUnlock()

	dir := filepath.Join(s.root, sessionID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, classify("create session dir", dir, err)
	}

	base := safename.Base(originalName)
	if base == "" {
		base = "upload"
	}
	millis := s.now().UnixMilli()

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		storedName := safename.Sanitize(strconv.FormatInt(millis+int64(attempt), 10) + "_" + base)
		absPath := filepath.Join(dir, storedName)

		f, err := s.fs.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, classify("create file", absPath, err)
		}

		_, writeErr := f.Write(data)
		closeErr := f.Close()
		if writeErr != nil || closeErr != nil {
			_ = s.fs.Remove(absPath)
			return nil, classify("write file", absPath, errors.Join(writeErr, closeErr))
		}

		logging.Debug("stored upload", "session", sessionID, "file", storedName, "mimetype", mimeType, "size", len(data))
		return &SavedFile{
			AbsPath:    absPath,
			RelPath:    path.Join(sessionID, storedName),
			StoredName: storedName,
			Size:       int64(len(data)),
		}, nil
	}
	return nil, fmt.Errorf("save file: no free name for %q in session %s", base, sessionID)
}

// Read returns the bytes stored at relPath (relative to the upload root).
func (s *Store) Read(ctx context.Context, relPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sessionID, absPath, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}

	lock := s.locks.get(sessionID)
	lock.RLock()
	defer lock.RUnlock()

	data, err := afero.ReadFile(s.fs, absPath)
	if err != nil {
		return nil, classify("read file", relPath, err)
	}
	return data, nil
}

// Stat reports size and modification time of a stored file.
func (s *Store) Stat(ctx context.Context, relPath string) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, absPath, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(absPath)
	if err != nil {
		return nil, classify("stat file", relPath, err)
	}
	return &FileInfo{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete removes a stored file. It returns false without error when the
// file was already gone.
func (s *Store) Delete(ctx context.Context, relPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sessionID, absPath, err := s.resolve(relPath)
	if err != nil {
		return false, err
	}

	lock := s.locks.get(sessionID)
	lock.RLock()
	defer lock.RUnlock()

	if err := s.fs.Remove(absPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, classify("delete file", relPath, err)
	}
	return true, nil
}

// PurgeOlderThan removes session directories last modified more than days
// ago. Each directory is renamed into quarantine under its exclusive lock and
// then deleted; a directory busy with uploads or reads is skipped until the
// next sweep. Failures are per directory and never stop the sweep.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (*PurgeReport, error) {
	report := &PurgeReport{Failed: make(map[string]error)}
	cutoff := s.now().AddDate(0, 0, -days)

	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, nil
		}
		return nil, classify("list upload dir", s.root, err)
	}

	s.drainQuarantine()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !entry.ModTime().Before(cutoff) {
			continue
		}

		removed, err := s.purgeSession(name, cutoff)
		switch {
		case err != nil:
			report.Failed[name] = err
			logging.Warn("purge session dir failed", "session", name, "err", err)
		case removed:
			report.Removed = append(report.Removed, name)
			logging.Info("purged old session dir", "session", name)
		default:
			report.Skipped = append(report.Skipped, name)
		}
	}
	return report, nil
}

func (s *Store) purgeSession(sessionID string, cutoff time.Time) (bool, error) {
	lock := s.locks.get(sessionID)
	if !lock.TryLock() {
		return false, nil
	}
	defer lock.Unlock()

	dir := filepath.Join(s.root, sessionID)
	// Re-check under the lock: an upload may have touched it since listing.
	info, err := s.fs.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, classify("stat session dir", dir, err)
	}
	if !info.ModTime().Before(cutoff) {
		return false, nil
	}

	qdir := filepath.Join(s.root, quarantineDir)
	if err := s.fs.MkdirAll(qdir, 0o755); err != nil {
		return false, classify("create quarantine dir", qdir, err)
	}
	target := filepath.Join(qdir, fmt.Sprintf("%s-%d", sessionID, s.now().UnixNano()))
	if err := s.fs.Rename(dir, target); err != nil {
		return false, classify("quarantine session dir", dir, err)
	}
	s.locks.forget(sessionID, lock)
	if err := s.fs.RemoveAll(target); err != nil {
		return true, classify("remove quarantined dir", target, err)
	}
	return true, nil
}

// drainQuarantine clears leftovers from interrupted sweeps.
func (s *Store) drainQuarantine() {
	qdir := filepath.Join(s.root, quarantineDir)
	entries, err := afero.ReadDir(s.fs, qdir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if err := s.fs.RemoveAll(filepath.Join(qdir, entry.Name())); err != nil {
			logging.Warn("remove quarantined entry failed", "entry", entry.Name(), "err", err)
		}
	}
}

func (s *Store) resolve(relPath string) (string, string, error) {
	clean := path.Clean(filepath.ToSlash(relPath))
	if relPath == "" || path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}
	parts := strings.SplitN(clean, "/", 2)
	if len(parts) != 2 || !sessionIDPattern.MatchString(parts[0]) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}
	return parts[0], filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
