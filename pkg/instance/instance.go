package instance

import "os"

const envInstanceID = "COFFEESHOP_INSTANCE_ID"

// GetID names this worker process in logs. It prefers an explicit id, then the
// hostname, which is the pod name under kubernetes.
func GetID() string {
	if id := os.Getenv(envInstanceID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
