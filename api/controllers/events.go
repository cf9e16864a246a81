package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/gemcart/pkg/logger"
)

const eventsKeepAlive = 25 * time.Second

type changeEvent struct {
	Store string `json:"store"`
}

// Events streams one server-sent event per store change of the current
// profile. The subscriptions are released when the client goes away.
func Events(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		ctx := r.Context()
		rc := http.NewResponseController(w)

		changes := make(chan string, 16)
		unwatch := p.Watch(func(store string) {
			select {
			case changes <- store:
			default:
				// slow client; it will refetch on the next event
			}
		})
		defer unwatch()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			if logg != nil {
				logg.Error(ctx, "events.flush_unsupported", err)
			}
			return
		}
		if logg != nil {
			logg.Debug(ctx, "events.subscribed")
		}

		ticker := time.NewTicker(eventsKeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if logg != nil {
					logg.Debug(ctx, "events.closed")
				}
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
			case store := <-changes:
				data, _ := json.Marshal(changeEvent{Store: store})
				if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
