package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/gemcart/pkg/db"
	"github.com/angelmondragon/gemcart/pkg/db/models"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultPollInterval = 2 * time.Second

// SQL stores values in the storage_entries table. Deletes leave a tombstone
// so pollers in other processes observe them.
type SQL struct {
	client   *db.Client
	interval time.Duration
	log      *logger.Logger
}

// NewSQL migrates the storage table and returns the backend.
func NewSQL(ctx context.Context, client *db.Client, interval time.Duration, logg *logger.Logger) (*SQL, error) {
	if client == nil {
		return nil, errors.New("kv: sql backend requires a db client")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if err := client.AutoMigrate(ctx, &models.StorageEntry{}); err != nil {
		return nil, fmt.Errorf("migrate storage entries: %w", err)
	}
	return &SQL{client: client, interval: interval, log: logg}, nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var entry models.StorageEntry
	err := s.client.DB().WithContext(ctx).
		Where("key = ? AND deleted = ?", key, false).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value, origin string) error {
	return s.upsert(ctx, models.StorageEntry{Key: key, Value: value, Origin: origin})
}

func (s *SQL) Delete(ctx context.Context, key, origin string) error {
	return s.upsert(ctx, models.StorageEntry{Key: key, Origin: origin, Deleted: true})
}

func (s *SQL) upsert(ctx context.Context, entry models.StorageEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	return s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "origin", "deleted", "updated_at"}),
		}).
		Create(&entry).Error
}

// Watch polls for rows updated after the watch started.
func (s *SQL) Watch(ctx context.Context, fn func(Event)) (func(), error) {
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cursor := time.Now().UTC()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				cursor = s.poll(pollCtx, cursor, fn)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (s *SQL) poll(ctx context.Context, cursor time.Time, fn func(Event)) time.Time {
	var entries []models.StorageEntry
	err := s.client.DB().WithContext(ctx).
		Select("key", "origin", "updated_at").
		Where("updated_at > ?", cursor).
		Order("updated_at ASC").
		Find(&entries).Error
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "storage.sql_poll_failed")
		}
		return cursor
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return cursor
		}
		fn(Event{Key: entry.Key, Origin: entry.Origin})
		if entry.UpdatedAt.After(cursor) {
			cursor = entry.UpdatedAt
		}
	}
	return cursor
}

// PurgeTombstones deletes tombstones last touched before cutoff. Pollers
// must have had time to see them, so cutoff should trail now generously.
func (s *SQL) PurgeTombstones(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Where("deleted = ? AND updated_at < ?", true, cutoff.UTC()).
			Delete(&models.StorageEntry{})
		purged = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("purge tombstones: %w", err)
	}
	return purged, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close leaves the shared db client open; its owner closes it.
func (s *SQL) Close() error {
	return nil
}
