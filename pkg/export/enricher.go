package export

import (
	"context"

	"github.com/teamexport/slacksnap/pkg/models"
)

// Enricher joins a raw message with its author's profile and with
// embedded attachment data, producing a self-contained record.
type Enricher struct {
	embedder *Embedder
}

// NewEnricher creates an enricher using the given embedder.
func NewEnricher(embedder *Embedder) *Enricher {
	return &Enricher{embedder: embedder}
}

// Enrich returns a new record with attachments embedded (order kept) and
// the author's display profile denormalized onto it. The input message
// and the user index are never mutated. An unknown or unset author is a
// handled case: the profile stays absent.
func (e *Enricher) Enrich(ctx context.Context, msg models.MessageRecord, users map[string]models.UserRecord) models.MessageRecord {
	enriched := msg
	enriched.Files = e.embedder.EmbedAll(ctx, msg.Files)

	if msg.UserID != "" {
		if user, ok := users[msg.UserID]; ok {
			enriched.Author = &models.AuthorProfile{
				DisplayName: user.DisplayName(),
				RealName:    user.ResolvedRealName(),
				Avatar:      user.Profile.Image24,
			}
		}
	}

	return enriched
}
