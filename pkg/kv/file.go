package kv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
)

const (
	fileSuffix = ".json"
	tempPrefix = ".tmp-"

	// Keys whose escaped name would pass NAME_MAX are stored under a hash,
	// with the key itself in a sidecar so watchers can resolve events.
	maxFileName  = 255
	hashedPrefix = "h="
	keySuffix    = ".key"
)

// File keeps one file per key inside a directory. Separate processes sharing
// the directory see each other's writes through fsnotify.
type File struct {
	dir string
	mu  sync.Mutex
	log *logger.Logger
}

// NewFile prepares dir and returns a backend rooted there.
func NewFile(dir string, logg *logger.Logger) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("kv: file backend directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &File{dir: abs, log: logg}, nil
}

// Dir returns the absolute storage directory.
func (f *File) Dir() string {
	return f.dir
}

// fileStem is the file name of key without its suffix. QueryEscape never
// emits "=", so hashed stems cannot collide with escaped ones.
func fileStem(key string) (stem string, hashed bool) {
	escaped := url.QueryEscape(key)
	if len(escaped)+len(fileSuffix) <= maxFileName {
		return escaped, false
	}
	sum := sha256.Sum256([]byte(key))
	return hashedPrefix + hex.EncodeToString(sum[:]), true
}

func (f *File) path(key string) string {
	stem, _ := fileStem(key)
	return filepath.Join(f.dir, stem+fileSuffix)
}

func keyFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	stem := strings.TrimSuffix(name, fileSuffix)
	if strings.HasPrefix(stem, hashedPrefix) {
		data, err := os.ReadFile(filepath.Join(filepath.Dir(path), stem+keySuffix))
		if err != nil {
			return "", false
		}
		return string(data), true
	}
	key, err := url.QueryUnescape(stem)
	if err != nil {
		return "", false
	}
	return key, true
}

// writeKeyName records the key behind a hashed file name once.
func (f *File) writeKeyName(key string) error {
	stem, hashed := fileStem(key)
	if !hashed {
		return nil
	}
	sidecar := filepath.Join(f.dir, stem+keySuffix)
	if _, err := os.Stat(sidecar); err == nil {
		return nil
	}
	if err := os.WriteFile(sidecar, []byte(key), 0o644); err != nil {
		return fmt.Errorf("write key name: %w", err)
	}
	return nil
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// Set writes through a temp file and rename so readers never see a partial
// value. Origin is not recorded; watchers receive events without one.
func (f *File) Set(_ context.Context, key, value, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writeKeyName(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) Watch(ctx context.Context, fn func(Event)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", f.dir, err)
	}

	go f.run(ctx, watcher, fn)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := watcher.Close(); err != nil {
				f.log.Error(ctx, "storage.file_watcher_close_failed", err)
			}
		})
	}, nil
}

func (f *File) run(ctx context.Context, watcher *fsnotify.Watcher, fn func(Event)) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			key, ok := keyFromPath(event.Name)
			if !ok {
				continue
			}
			fn(Event{Key: key})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.log.Error(ctx, "storage.file_watcher_error", err)
		}
	}
}

// PurgeTemp removes temp files left behind by interrupted writes that are
// older than cutoff. It returns how many were removed.
func (f *File) PurgeTemp(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("list storage dir: %w", err)
	}
	var (
		removed int
		errs    error
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = multierr.Append(errs, err)
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}

func (f *File) Ping(context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("kv: %s is not a directory", f.dir)
	}
	return nil
}

func (f *File) Close() error {
	return nil
}
