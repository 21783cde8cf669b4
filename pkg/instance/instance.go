package instance

import "os"

// GetID identifies the running process for logs: WORKER_ID, then the Heroku
// DYNO name, then the hostname, then "local".
func GetID() string {
	for _, key := range []string{"WORKER_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
