package export

import (
	"context"
	"encoding/base64"
	"log"
	"sync"

	"github.com/teamexport/slacksnap/pkg/models"
	"github.com/teamexport/slacksnap/pkg/slack"
)

// MaxEmbedSize is the hard ceiling on the size of a file that will be
// inlined into the snapshot. Larger files stay reference-only.
const MaxEmbedSize = 5 << 20 // 5 MiB

// embeddableTypes is the fixed set of mimetypes worth inlining. Anything
// else, documents included, stays reference-only so the snapshot is not
// bloated with opaque binaries.
var embeddableTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

// Embedder decides per file whether to fetch and inline its bytes. All
// fetches across one export run share a single semaphore so a channel
// full of image posts cannot open an unbounded number of downloads.
type Embedder struct {
	client slack.Client
	sem    chan struct{}
}

// NewEmbedder creates an embedder whose concurrent fetches are capped at
// maxInFlight across the whole export run.
func NewEmbedder(client slack.Client, maxInFlight int) *Embedder {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Embedder{
		client: client,
		sem:    make(chan struct{}, maxInFlight),
	}
}

// Eligible reports whether a file qualifies for embedding.
func Eligible(f models.FileDescriptor) bool {
	return f.URLPrivate != "" && f.Size <= MaxEmbedSize && embeddableTypes[f.Mimetype]
}

// Embed returns the file with its bytes inlined when it is eligible and
// the fetch succeeds, and the file unchanged otherwise. Fetch failures
// are soft: they are logged and the descriptor passes through untouched.
func (e *Embedder) Embed(ctx context.Context, f models.FileDescriptor) models.FileDescriptor {
	if !Eligible(f) {
		return f
	}

	e.sem <- struct{}{}
	data, err := e.client.FetchBytes(ctx, f.URLPrivate)
	<-e.sem

	if err != nil {
		log.Printf("[export] file %s: fetch failed, keeping reference only: %v", f.ID, err)
		return f
	}

	f.Embedded = &models.EmbeddedPayload{
		Data:     base64.StdEncoding.EncodeToString(data),
		Mimetype: f.Mimetype,
	}
	return f
}

// EmbedAll embeds every eligible file of one message concurrently and
// returns a new list in the original order.
func (e *Embedder) EmbedAll(ctx context.Context, files []models.FileDescriptor) []models.FileDescriptor {
	if len(files) == 0 {
		return nil
	}

	out := make([]models.FileDescriptor, len(files))
	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = e.Embed(ctx, files[i])
		}(i)
	}
	wg.Wait()
	return out
}
