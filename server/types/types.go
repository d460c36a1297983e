// Package types holds values shared by the server and its handlers without
// an import cycle.
package types

import (
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/buildinfo"
)

// ServerProperties describes the running control plane, served on /api/server.
type ServerProperties struct {
	Build      buildinfo.Properties `json:"build"`
	StartedAt  time.Time            `json:"started_at"`
	Hostname   string               `json:"hostname"`
	ListenAddr string               `json:"listen_addr"`
	ConfigPath string               `json:"config_path"`
	// Accounts are the enabled accounts of the loaded configuration.
	Accounts []string `json:"accounts"`
	// Schedules are the cron expressions of the configured triggers.
	Schedules []string `json:"schedules,omitempty"`
}
