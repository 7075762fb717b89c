package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teamexport/slacksnap/pkg/models"
)

func TestEmbedIneligibleFilesPassThrough(t *testing.T) {
	tests := []struct {
		name string
		file models.FileDescriptor
	}{
		{
			name: "over size ceiling",
			file: models.FileDescriptor{
				ID:         "F1",
				Mimetype:   "image/png",
				Size:       MaxEmbedSize + 1,
				URLPrivate: "https://files.example.com/f1",
			},
		},
		{
			name: "non-embeddable mimetype",
			file: models.FileDescriptor{
				ID:         "F2",
				Mimetype:   "application/pdf",
				Size:       1024,
				URLPrivate: "https://files.example.com/f2",
			},
		},
		{
			name: "missing URL",
			file: models.FileDescriptor{
				ID:       "F3",
				Mimetype: "image/jpeg",
				Size:     1024,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{}
			embedder := NewEmbedder(client, 4)

			got := embedder.Embed(context.Background(), tt.file)

			if !reflect.DeepEqual(got, tt.file) {
				t.Errorf("Embed() = %+v, want input unchanged %+v", got, tt.file)
			}
			if client.fetchCount() != 0 {
				t.Errorf("fetch called %d times for ineligible file", client.fetchCount())
			}
		})
	}
}

func TestEmbedEligibleFileInlinesBytes(t *testing.T) {
	payload := []byte("pretend-png-bytes")
	client := &mockClient{
		fetchBytesFunc: func(_ context.Context, _ string) ([]byte, error) {
			return payload, nil
		},
	}
	embedder := NewEmbedder(client, 4)

	file := models.FileDescriptor{
		ID:         "F1",
		Name:       "diagram.png",
		Mimetype:   "image/png",
		Size:       2 << 20,
		URLPrivate: "https://files.example.com/f1",
	}

	got := embedder.Embed(context.Background(), file)

	if got.Embedded == nil {
		t.Fatal("expected embedded payload")
	}
	if got.Embedded.Data != base64.StdEncoding.EncodeToString(payload) {
		t.Errorf("embedded data does not match fetched bytes")
	}
	if got.Embedded.Mimetype != "image/png" {
		t.Errorf("embedded mimetype = %q, want image/png", got.Embedded.Mimetype)
	}

	// Upgrade only: everything except Embedded must equal the input.
	got.Embedded = nil
	if !reflect.DeepEqual(got, file) {
		t.Errorf("Embed() altered fields beyond Embedded: %+v != %+v", got, file)
	}
}

func TestEmbedFetchFailureIsSoft(t *testing.T) {
	client := &mockClient{
		fetchBytesFunc: func(_ context.Context, _ string) ([]byte, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}
	embedder := NewEmbedder(client, 4)

	file := models.FileDescriptor{
		ID:         "F1",
		Mimetype:   "image/gif",
		Size:       512,
		URLPrivate: "https://files.example.com/f1",
	}

	got := embedder.Embed(context.Background(), file)
	if !reflect.DeepEqual(got, file) {
		t.Errorf("Embed() = %+v, want unchanged input on fetch failure", got)
	}
}

func TestEmbedAllPreservesOrder(t *testing.T) {
	client := &mockClient{
		fetchBytesFunc: func(_ context.Context, fileURL string) ([]byte, error) {
			return []byte(fileURL), nil
		},
	}
	embedder := NewEmbedder(client, 2)

	files := make([]models.FileDescriptor, 8)
	for i := range files {
		files[i] = models.FileDescriptor{
			ID:         fmt.Sprintf("F%d", i),
			Mimetype:   "image/jpeg",
			Size:       100,
			URLPrivate: fmt.Sprintf("https://files.example.com/f%d", i),
		}
	}

	got := embedder.EmbedAll(context.Background(), files)

	if len(got) != len(files) {
		t.Fatalf("EmbedAll() returned %d files, want %d", len(got), len(files))
	}
	for i, f := range got {
		if f.ID != files[i].ID {
			t.Errorf("position %d: got %s, want %s", i, f.ID, files[i].ID)
		}
		if f.Embedded == nil {
			t.Errorf("position %d: missing embedded payload", i)
		}
	}
}

func TestEmbedderBoundsConcurrentFetches(t *testing.T) {
	const maxInFlight = 3
	var inFlight, peak int32
	var mu sync.Mutex

	client := &mockClient{
		fetchBytesFunc: func(_ context.Context, _ string) ([]byte, error) {
			n := atomic.AddInt32(&inFlight, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return []byte("x"), nil
		},
	}
	embedder := NewEmbedder(client, maxInFlight)

	files := make([]models.FileDescriptor, 12)
	for i := range files {
		files[i] = models.FileDescriptor{
			ID:         fmt.Sprintf("F%d", i),
			Mimetype:   "image/png",
			Size:       10,
			URLPrivate: "https://files.example.com/f",
		}
	}

	embedder.EmbedAll(context.Background(), files)

	mu.Lock()
	defer mu.Unlock()
	if peak > maxInFlight {
		t.Errorf("peak concurrent fetches = %d, want <= %d", peak, maxInFlight)
	}
}
