package instance

import "os"

// GetID returns the worker instance identifier. PROFITLENS_WORKER_ID wins,
// then the host name, then a fixed default.
func GetID() string {
	if id := os.Getenv("PROFITLENS_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
