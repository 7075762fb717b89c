package export

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/teamexport/slacksnap/pkg/models"
	"github.com/teamexport/slacksnap/pkg/slack"
)

// channelTypes is what the aggregator enumerates: public and private
// channels, but not DMs.
const channelTypes = "public_channel,private_channel"

// AggregatorConfig tunes one export run.
type AggregatorConfig struct {
	// Window is how far back to harvest history per channel.
	Window time.Duration

	// ListLimit caps how many channels and users are enumerated.
	ListLimit int

	// MaxTransfers caps concurrent file downloads across the whole run.
	MaxTransfers int

	// Pacing is the delay inserted between channel harvests to stay
	// under the remote rate limit. Not a correctness requirement.
	Pacing time.Duration
}

// DefaultAggregatorConfig returns the defaults used by the CLI and the
// API server.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Window:       DefaultWindow,
		ListLimit:    1000,
		MaxTransfers: 8,
		Pacing:       time.Second,
	}
}

// Aggregator orchestrates a full workspace export: it enumerates
// channels and users, harvests each channel sequentially, and assembles
// the final snapshot with derived counters. It is the only component
// allowed to fail the run as a whole.
type Aggregator struct {
	client    slack.Client
	harvester *Harvester
	reporter  Reporter
	cfg       AggregatorConfig
}

// NewAggregator wires an aggregator and its pipeline from a client and
// config. A nil reporter disables progress events.
func NewAggregator(client slack.Client, cfg AggregatorConfig, reporter Reporter) *Aggregator {
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultAggregatorConfig().ListLimit
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	embedder := NewEmbedder(client, cfg.MaxTransfers)
	enricher := NewEnricher(embedder)
	harvester := NewHarvester(client, enricher, cfg.Window)

	return &Aggregator{
		client:    client,
		harvester: harvester,
		reporter:  reporter,
		cfg:       cfg,
	}
}

// Run executes the export and returns the snapshot. It fails only when
// the run is meaningless as a whole: authentication or enumeration of
// channels or users failed. Per-channel harvest failures degrade that
// channel's bundle and are recorded on the snapshot instead.
func (a *Aggregator) Run(ctx context.Context) (*models.ExportSnapshot, error) {
	auth, err := a.client.TestAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth check: %w", err)
	}
	a.report(Event{Stage: StageAuth, Channel: auth.Team})

	channels, err := a.client.ListChannels(ctx, channelTypes, a.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	a.report(Event{Stage: StageChannels, Count: len(channels)})

	userList, err := a.client.ListUsers(ctx, a.cfg.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make(map[string]models.UserRecord, len(userList))
	for _, u := range userList {
		users[u.ID] = u
	}
	a.report(Event{Stage: StageUsers, Count: len(users)})

	bundles := make(map[string]models.ChannelBundle, len(channels))
	var degraded []string

	for i, channel := range channels {
		bundle, err := a.harvester.Harvest(ctx, channel, users)

		ev := Event{
			Stage:     StageHarvest,
			Channel:   channel.Name,
			ChannelID: channel.ID,
			Count:     len(bundle.Messages),
		}
		if err != nil {
			log.Printf("[export] channel %s (%s) degraded: %v", channel.Name, channel.ID, err)
			degraded = append(degraded, channel.ID)
			ev.Degraded = true
			ev.Error = err.Error()
		}
		bundles[channel.ID] = bundle
		a.report(ev)

		if i < len(channels)-1 {
			if err := sleep(ctx, a.cfg.Pacing); err != nil {
				return nil, err
			}
		}
	}

	snapshot := models.NewExportSnapshot(users, bundles, degraded)
	a.report(Event{Stage: StageDone, Count: snapshot.TotalMessages})
	return snapshot, nil
}

func (a *Aggregator) report(ev Event) {
	ev.Timestamp = time.Now().UTC()
	a.reporter.Report(ev)
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
