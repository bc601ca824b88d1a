// Package instance names the running process for logs and lock ownership.
package instance

import (
	"os"

	"github.com/palletwine/palletwine-backend/pkg/env"
)

// ID returns the platform dyno name, an explicit PALLETWINE_INSTANCE_ID,
// or the hostname, in that order.
func ID() string {
	if id := env.First("", "DYNO", "PALLETWINE_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
