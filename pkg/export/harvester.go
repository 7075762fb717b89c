package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teamexport/slacksnap/pkg/models"
	"github.com/teamexport/slacksnap/pkg/slack"
)

// DefaultWindow is how far back history is harvested when no window is
// configured.
const DefaultWindow = 30 * 24 * time.Hour

// DefaultPageLimit caps one history request at the API's page maximum.
const DefaultPageLimit = 200

// Harvester retrieves and enriches one channel's history. It never
// fails hard: any error while fetching or enriching degrades the bundle
// to descriptor-plus-empty-history instead of aborting the export.
type Harvester struct {
	client    slack.Client
	enricher  *Enricher
	window    time.Duration
	pageLimit int

	// now is stubbed in tests to pin the window cutoff.
	now func() time.Time
}

// NewHarvester creates a harvester. A window of zero means DefaultWindow.
func NewHarvester(client slack.Client, enricher *Enricher, window time.Duration) *Harvester {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Harvester{
		client:    client,
		enricher:  enricher,
		window:    window,
		pageLimit: DefaultPageLimit,
		now:       time.Now,
	}
}

// Harvest fetches the channel's history from the window cutoff forward
// and enriches every message concurrently, preserving chronological
// order. On failure it returns a valid bundle with the descriptor intact
// and no messages, plus the error for the caller's bookkeeping; the
// bundle is always usable.
func (h *Harvester) Harvest(ctx context.Context, channel models.ChannelDescriptor, users map[string]models.UserRecord) (models.ChannelBundle, error) {
	bundle := models.ChannelBundle{
		Channel:  channel,
		Messages: []models.MessageRecord{},
	}

	cutoff := h.now().Add(-h.window)
	oldest := fmt.Sprintf("%d.000000", cutoff.Unix())

	raw, err := h.client.GetHistory(ctx, channel.ID, oldest, h.pageLimit)
	if err != nil {
		return bundle, fmt.Errorf("harvest %s: %w", channel.Name, err)
	}

	// Fan out enrichment, fan in by index so the chronological order of
	// the history response survives any latency variance.
	enriched := make([]models.MessageRecord, len(raw))
	var wg sync.WaitGroup
	for i := range raw {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			enriched[i] = h.enricher.Enrich(ctx, raw[i], users)
		}(i)
	}
	wg.Wait()

	bundle.Messages = enriched
	return bundle, nil
}
