package instance

import (
	"os"

	"github.com/angelmondragon/gemcart/pkg/env"
)

// GetID identifies this process in logs: GEMCART_INSTANCE_ID, then the
// platform dyno name, then the hostname.
func GetID() string {
	if id, ok := env.First("GEMCART_INSTANCE_ID", "DYNO"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
