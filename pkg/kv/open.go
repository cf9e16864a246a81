package kv

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/gemcart/pkg/config"
	"github.com/angelmondragon/gemcart/pkg/db"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/migrate"
	"github.com/angelmondragon/gemcart/pkg/redis"
)

// Opened is a configured backend together with the clients it runs on.
// SQL and File are set only for their backend kinds so housekeeping can
// reach the maintenance methods.
type Opened struct {
	Kind    string
	Backend Backend
	SQL     *SQL
	File    *File
	DB      *db.Client
	Redis   *redis.Client
}

// Open builds the backend selected by cfg.Storage.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Opened, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	o := &Opened{Kind: cfg.Storage.Kind()}
	ctx = logg.WithField(ctx, "storage", o.Kind)

	switch o.Kind {
	case config.StorageNone:
		o.Backend = Unavailable{}
	case config.StorageMemory:
		o.Backend = NewMemory()
	case config.StorageFile:
		file, err := NewFile(cfg.Storage.FileDir, logg)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		o.File, o.Backend = file, file
	case config.StorageRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("open redis storage: %w", err)
		}
		o.Redis = client
		o.Backend = NewRedis(client, cfg.Storage.Channel, logg)
	case config.StorageSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("open sql storage: %w", err)
		}
		o.DB = client
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return nil, multierr.Append(err, o.Close())
		}
		backend, err := NewSQL(ctx, client, cfg.Storage.PollInterval, logg)
		if err != nil {
			return nil, multierr.Append(err, o.Close())
		}
		o.SQL, o.Backend = backend, backend
	default:
		return nil, fmt.Errorf("unknown storage backend %q", o.Kind)
	}

	logg.Info(ctx, "storage backend ready")
	return o, nil
}

// Close releases the backend and then the clients beneath it.
func (o *Opened) Close() error {
	var err error
	if o.Backend != nil {
		err = multierr.Append(err, o.Backend.Close())
	}
	if o.DB != nil {
		err = multierr.Append(err, o.DB.Close())
	}
	if o.Redis != nil {
		err = multierr.Append(err, o.Redis.Close())
	}
	return err
}
