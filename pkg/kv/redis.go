package kv

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/gemcart/pkg/logger"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, message any) error
	Listen(ctx context.Context, channel string, fn func(payload string)) (func() error, error)
	StorageKey(key string) string
	ChannelKey(name string) string
	Ping(ctx context.Context) error
}

// Redis persists values in redis and announces every change on a pub/sub
// channel so other processes can reconcile.
type Redis struct {
	client  redisClient
	channel string
	log     *logger.Logger
}

func NewRedis(client redisClient, channel string, logg *logger.Logger) *Redis {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Redis{client: client, channel: client.ChannelKey(channel), log: logg}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	return r.client.Get(ctx, r.client.StorageKey(key))
}

func (r *Redis) Set(ctx context.Context, key, value, origin string) error {
	if err := r.client.Set(ctx, r.client.StorageKey(key), value, 0); err != nil {
		return err
	}
	r.announce(ctx, Event{Key: key, Origin: origin})
	return nil
}

func (r *Redis) Delete(ctx context.Context, key, origin string) error {
	if err := r.client.Del(ctx, r.client.StorageKey(key)); err != nil {
		return err
	}
	r.announce(ctx, Event{Key: key, Origin: origin})
	return nil
}

// announce failures are logged only: the value is already persisted and
// peers converge on their next read.
func (r *Redis) announce(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Error(ctx, "storage.redis_event_encode_failed", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, string(payload)); err != nil {
		r.log.Warn(r.log.WithFields(ctx, map[string]any{"key": ev.Key, "error": err.Error()}), "storage.redis_publish_failed")
	}
}

func (r *Redis) Watch(ctx context.Context, fn func(Event)) (func(), error) {
	stop, err := r.client.Listen(ctx, r.channel, func(payload string) {
		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.Key == "" {
			r.log.Warn(r.log.WithField(ctx, "payload", payload), "storage.redis_event_malformed")
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := stop(); err != nil {
			r.log.Error(ctx, "storage.redis_unsubscribe_failed", err)
		}
	}, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close leaves the shared redis client open; its owner closes it.
func (r *Redis) Close() error {
	return nil
}
