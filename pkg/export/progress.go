package export

import (
	"log"
	"time"
)

// Stage identifies where in the pipeline a progress event originated.
type Stage string

const (
	StageAuth     Stage = "auth"
	StageChannels Stage = "channels"
	StageUsers    Stage = "users"
	StageHarvest  Stage = "harvest"
	StageDone     Stage = "done"
)

// Event is one progress notification emitted during an export run.
type Event struct {
	Stage     Stage     `json:"stage"`
	Channel   string    `json:"channel,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	Degraded  bool      `json:"degraded,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter receives progress events. Implementations must not block:
// events are emitted from the coordinating flow of the export.
type Reporter interface {
	Report(ev Event)
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Report(Event) {}

// Multi fans one event out to several reporters.
func Multi(reporters ...Reporter) Reporter {
	return multiReporter(reporters)
}

type multiReporter []Reporter

func (m multiReporter) Report(ev Event) {
	for _, r := range m {
		r.Report(ev)
	}
}

// LogReporter writes events to the standard logger.
type LogReporter struct{}

func (LogReporter) Report(ev Event) {
	switch {
	case ev.Error != "":
		log.Printf("[export] %s %s: %s", ev.Stage, ev.Channel, ev.Error)
	case ev.Channel != "":
		log.Printf("[export] %s %s: %d messages", ev.Stage, ev.Channel, ev.Count)
	default:
		log.Printf("[export] %s: %d", ev.Stage, ev.Count)
	}
}
