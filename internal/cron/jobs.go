package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/gemcart/pkg/logger"
)

const (
	defaultProfileIdle        = 30 * time.Minute
	defaultTombstoneRetention = 24 * time.Hour
	defaultTempFileAge        = time.Hour
)

type profileEvictor interface {
	EvictIdle(ctx context.Context, idle time.Duration) int
}

// ProfileEvictionJob unloads in-memory profiles nobody used recently.
type ProfileEvictionJob struct {
	logg     *logger.Logger
	profiles profileEvictor
	idle     time.Duration
}

func NewProfileEvictionJob(logg *logger.Logger, profiles profileEvictor, idle time.Duration) (*ProfileEvictionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile registry required")
	}
	if idle <= 0 {
		idle = defaultProfileIdle
	}
	return &ProfileEvictionJob{logg: logg, profiles: profiles, idle: idle}, nil
}

func (j *ProfileEvictionJob) Name() string { return "profile-eviction" }

func (j *ProfileEvictionJob) Run(ctx context.Context) error {
	evicted := j.profiles.EvictIdle(ctx, j.idle)
	if evicted > 0 {
		j.logg.Info(j.logg.WithField(ctx, "evicted", evicted), "profiles evicted")
	}
	return nil
}

type tombstonePurger interface {
	PurgeTombstones(ctx context.Context, cutoff time.Time) (int64, error)
}

// TombstonePurgeJob drops deleted-key markers of the SQL storage backend
// once every poller has had time to observe them.
type TombstonePurgeJob struct {
	logg      *logger.Logger
	store     tombstonePurger
	retention time.Duration
	now       func() time.Time
}

func NewTombstonePurgeJob(logg *logger.Logger, store tombstonePurger, retention time.Duration) (*TombstonePurgeJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("sql storage required")
	}
	if retention <= 0 {
		retention = defaultTombstoneRetention
	}
	return &TombstonePurgeJob{logg: logg, store: store, retention: retention, now: time.Now}, nil
}

func (j *TombstonePurgeJob) Name() string { return "storage-tombstone-purge" }

func (j *TombstonePurgeJob) Run(ctx context.Context) error {
	purged, err := j.store.PurgeTombstones(ctx, j.now().UTC().Add(-j.retention))
	if err != nil {
		return err
	}
	if purged > 0 {
		j.logg.Info(j.logg.WithField(ctx, "purged", purged), "storage tombstones purged")
	}
	return nil
}

type tempPurger interface {
	PurgeTemp(cutoff time.Time) (int, error)
}

// TempFileCleanupJob removes temp files abandoned by interrupted writes of
// the file storage backend.
type TempFileCleanupJob struct {
	logg  *logger.Logger
	store tempPurger
	age   time.Duration
	now   func() time.Time
}

func NewTempFileCleanupJob(logg *logger.Logger, store tempPurger, age time.Duration) (*TempFileCleanupJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("file storage required")
	}
	if age <= 0 {
		age = defaultTempFileAge
	}
	return &TempFileCleanupJob{logg: logg, store: store, age: age, now: time.Now}, nil
}

func (j *TempFileCleanupJob) Name() string { return "storage-temp-cleanup" }

func (j *TempFileCleanupJob) Run(ctx context.Context) error {
	removed, err := j.store.PurgeTemp(j.now().Add(-j.age))
	if removed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "removed", removed), "storage temp files removed")
	}
	if err != nil {
		return fmt.Errorf("temp cleanup: %w", err)
	}
	return nil
}
