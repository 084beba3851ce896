package model

import "time"

// Shared defaults used by both the server and CLI binaries.
const (
	DefaultDistributionWindow = time.Hour
	DefaultThrottleWindow     = 3000 * time.Second
	DefaultThrottleSize       = 1000
	DefaultCacheSize          = 100
	UnknownLocation           = "Unknown"
)
