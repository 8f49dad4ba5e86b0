package instance

import "os"

const fallbackID = "shopcore-0"

// ID names this process in logs. SHOPCORE_INSTANCE_ID wins over the hostname.
func ID() string {
	if id := os.Getenv("SHOPCORE_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
