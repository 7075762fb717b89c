package models

import (
	"time"

	"github.com/google/uuid"
)

// ExportSnapshot is the complete point-in-time result of one export run.
// Channels are keyed by channel ID (names can collide; IDs cannot) and
// each bundle carries the display name in its descriptor. The counters
// are derived at construction time and never set independently.
type ExportSnapshot struct {
	RunID      string                   `json:"run_id"`
	ExportedAt time.Time                `json:"exported_at"`
	Users      map[string]UserRecord    `json:"users"`
	Channels   map[string]ChannelBundle `json:"channels"`

	// Degraded lists the IDs of channels whose history harvest failed
	// and were emitted with an empty message list.
	Degraded []string `json:"degraded,omitempty"`

	TotalChannels int `json:"total_channels"`
	TotalUsers    int `json:"total_users"`
	TotalMessages int `json:"total_messages"`
}

// NewExportSnapshot assembles a snapshot and computes its counters from
// the supplied maps. TotalMessages is the literal sum over bundles.
func NewExportSnapshot(users map[string]UserRecord, channels map[string]ChannelBundle, degraded []string) *ExportSnapshot {
	total := 0
	for _, bundle := range channels {
		total += len(bundle.Messages)
	}

	return &ExportSnapshot{
		RunID:         uuid.New().String(),
		ExportedAt:    time.Now().UTC(),
		Users:         users,
		Channels:      channels,
		Degraded:      degraded,
		TotalChannels: len(channels),
		TotalUsers:    len(users),
		TotalMessages: total,
	}
}

// Summary returns the counters in the shape used by API responses and
// the run log.
func (s *ExportSnapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"run_id":            s.RunID,
		"exported_at":       s.ExportedAt,
		"total_channels":    s.TotalChannels,
		"total_users":       s.TotalUsers,
		"total_messages":    s.TotalMessages,
		"degraded_channels": len(s.Degraded),
	}
}
