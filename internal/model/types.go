package model

import (
	"strings"
	"time"
)

// Snapshot is one reported server-state observation.
// It is the canonical type for ingestion, storage, journal replay, and aggregation.
type Snapshot struct {
	ID              string            `json:"id,omitempty"`
	ServerCore      string            `json:"serverCore" validate:"max=128"`
	ServerVersion   string            `json:"serverVersion" validate:"max=128"`
	OSName          string            `json:"osName" validate:"max=128"`
	OSVersion       string            `json:"osVersion" validate:"max=128"`
	OSArchitecture  string            `json:"osArchitecture" validate:"max=128"`
	RuntimeVersion  string            `json:"javaVersion" validate:"max=128"`
	CPUCores        int               `json:"cpuCores" validate:"gte=0"`
	TotalRAM        int64             `json:"totalRAM" validate:"gte=0"`
	Location        string            `json:"location"`
	ProjectVersion  string            `json:"projectVersion" validate:"max=128"`
	ProjectLanguage string            `json:"projectLanguage" validate:"max=128"`
	OnlineMode      string            `json:"onlineMode" validate:"max=128"`
	ProxyMode       string            `json:"proxyMode" validate:"max=128"`
	DatabaseMode    string            `json:"databaseMode" validate:"max=128"`
	PlayerCount     int               `json:"playerCount" validate:"gte=0"`
	Modules         map[string]string `json:"modules" validate:"max=256,dive,keys,max=128,endkeys,max=32"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// ModuleEnabled reports whether a module flag value means "on".
// Reporting clients send either "enabled"/"disabled" or "true"/"false".
func ModuleEnabled(value string) bool {
	v := strings.TrimSpace(value)
	return strings.EqualFold(v, "enabled") || strings.EqualFold(v, "true")
}

// Clone returns a deep copy so callers can hand snapshots across goroutines.
func (s *Snapshot) Clone() Snapshot {
	out := *s
	if s.Modules == nil {
		return out
	}
	out.Modules = make(map[string]string, len(s.Modules))
	for k, v := range s.Modules {
		out.Modules[k] = v
	}
	return out
}
