package index

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	wmodels "github.com/weaviate/weaviate/entities/models"

	"github.com/teamexport/slacksnap/pkg/models"
)

// className is the Weaviate class holding exported messages.
const className = "WorkspaceMessage"

// Indexer stores enriched messages from a finished snapshot in Weaviate
// so exports are searchable after the fact.
type Indexer struct {
	client *weaviate.Client
}

// NewIndexer creates an indexer for the given Weaviate endpoint.
func NewIndexer(scheme, host, apiKey string) (*Indexer, error) {
	if host == "" {
		return nil, fmt.Errorf("weaviate host cannot be empty")
	}

	cfg := weaviate.Config{
		Scheme: scheme,
		Host:   host,
	}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &Indexer{client: client}, nil
}

// Initialize creates the WorkspaceMessage class if it does not exist.
func (i *Indexer) Initialize(ctx context.Context) error {
	exists, err := i.client.Schema().ClassExistenceChecker().
		WithClassName(className).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check class existence: %w", err)
	}
	if exists {
		return nil
	}

	classObj := &wmodels.Class{
		Class:       className,
		Description: "A message from a workspace export snapshot",
		Properties: []*wmodels.Property{
			{
				Name:        "runId",
				DataType:    []string{"string"},
				Description: "Export run the message came from",
			},
			{
				Name:        "channelId",
				DataType:    []string{"string"},
				Description: "Channel the message belongs to",
			},
			{
				Name:        "channelName",
				DataType:    []string{"string"},
				Description: "Channel display name at export time",
			},
			{
				Name:        "ts",
				DataType:    []string{"string"},
				Description: "Message timestamp identifier",
			},
			{
				Name:        "text",
				DataType:    []string{"text"},
				Description: "Message text",
			},
			{
				Name:        "author",
				DataType:    []string{"string"},
				Description: "Denormalized author display name",
			},
			{
				Name:        "postedAt",
				DataType:    []string{"date"},
				Description: "Message time resolved from ts",
			},
			{
				Name:        "hasFiles",
				DataType:    []string{"boolean"},
				Description: "Whether the message carried attachments",
			},
		},
	}

	if err := i.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class schema: %w", err)
	}
	return nil
}

// IndexSnapshot stores every message of the snapshot and returns how
// many were indexed. Individual store failures abort the indexing run;
// the snapshot itself is already persisted elsewhere.
func (i *Indexer) IndexSnapshot(ctx context.Context, snap *models.ExportSnapshot) (int, error) {
	indexed := 0
	for channelID, bundle := range snap.Channels {
		for _, msg := range bundle.Messages {
			props := map[string]interface{}{
				"runId":       snap.RunID,
				"channelId":   channelID,
				"channelName": bundle.Channel.Name,
				"ts":          msg.TS,
				"text":        msg.Text,
				"hasFiles":    len(msg.Files) > 0,
			}
			if msg.Author != nil {
				props["author"] = msg.Author.DisplayName
			}
			if t, ok := parseTS(msg.TS); ok {
				props["postedAt"] = t
			}

			_, err := i.client.Data().Creator().
				WithClassName(className).
				WithProperties(props).
				Do(ctx)
			if err != nil {
				return indexed, fmt.Errorf("failed to index message %s/%s: %w", channelID, msg.TS, err)
			}
			indexed++
		}
	}
	return indexed, nil
}

// Consume implements the snapshot sink used by the API server.
func (i *Indexer) Consume(ctx context.Context, snap *models.ExportSnapshot) error {
	if err := i.Initialize(ctx); err != nil {
		return err
	}
	_, err := i.IndexSnapshot(ctx, snap)
	return err
}

// parseTS converts a Slack ts string ("1599934232.150700") to a time.
func parseTS(ts string) (time.Time, bool) {
	var sec, usec int64
	if _, err := fmt.Sscanf(ts, "%d.%d", &sec, &usec); err != nil {
		if _, err := fmt.Sscanf(ts, "%d", &sec); err != nil {
			return time.Time{}, false
		}
	}
	return time.Unix(sec, usec*1000).UTC(), true
}
