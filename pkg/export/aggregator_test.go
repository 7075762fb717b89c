package export

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/teamexport/slacksnap/pkg/models"
	"github.com/teamexport/slacksnap/pkg/slack"
)

func testAggregatorConfig() AggregatorConfig {
	cfg := DefaultAggregatorConfig()
	cfg.Pacing = 0
	return cfg
}

// Two channels: general succeeds with five messages, one carrying an
// eligible PNG; secret-ops fails with a permission error. The snapshot
// must still contain both channels.
func TestRunPartialFailureScenario(t *testing.T) {
	general := models.ChannelDescriptor{ID: "C1", Name: "general", IsGeneral: true, NumMembers: 42}
	secretOps := models.ChannelDescriptor{
		ID:         "C2",
		Name:       "secret-ops",
		IsArchived: true,
		Purpose:    "need to know",
	}

	history := make([]models.MessageRecord, 5)
	for i := range history {
		history[i] = models.MessageRecord{
			TS:     fmt.Sprintf("%d.000000", 1700000000+i),
			UserID: "U1",
			Text:   fmt.Sprintf("message %d", i),
		}
	}
	history[2].Files = []models.FileDescriptor{
		{ID: "F1", Name: "chart.png", Mimetype: "image/png", Size: 2 << 20, URLPrivate: "https://files.example.com/f1"},
	}

	client := &mockClient{
		listChannelsFunc: func(_ context.Context, types string, _ int) ([]models.ChannelDescriptor, error) {
			if types != "public_channel,private_channel" {
				t.Errorf("listed types = %q", types)
			}
			return []models.ChannelDescriptor{general, secretOps}, nil
		},
		listUsersFunc: func(_ context.Context, _ int) ([]models.UserRecord, error) {
			return []models.UserRecord{{ID: "U1", Name: "jdoe"}, {ID: "U2", Name: "admin"}}, nil
		},
		getHistoryFunc: func(_ context.Context, channelID, _ string, _ int) ([]models.MessageRecord, error) {
			if channelID == "C2" {
				return nil, &slack.APIError{Method: "conversations.history", Kind: slack.KindMissingScope}
			}
			return history, nil
		},
	}

	aggregator := NewAggregator(client, testAggregatorConfig(), nil)
	snapshot, err := aggregator.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if snapshot.TotalChannels != 2 {
		t.Errorf("TotalChannels = %d, want 2", snapshot.TotalChannels)
	}
	if snapshot.TotalUsers != 2 {
		t.Errorf("TotalUsers = %d, want 2", snapshot.TotalUsers)
	}
	if snapshot.TotalMessages != 5 {
		t.Errorf("TotalMessages = %d, want 5", snapshot.TotalMessages)
	}

	generalBundle, ok := snapshot.Channels["C1"]
	if !ok {
		t.Fatal("general bundle missing")
	}
	if len(generalBundle.Messages) != 5 {
		t.Fatalf("general has %d messages, want 5", len(generalBundle.Messages))
	}
	if generalBundle.Messages[2].Files[0].Embedded == nil {
		t.Error("PNG attachment was not embedded")
	}

	degradedBundle, ok := snapshot.Channels["C2"]
	if !ok {
		t.Fatal("secret-ops bundle missing")
	}
	if len(degradedBundle.Messages) != 0 {
		t.Errorf("secret-ops has %d messages, want 0", len(degradedBundle.Messages))
	}
	if !reflect.DeepEqual(degradedBundle.Channel, secretOps) {
		t.Errorf("secret-ops descriptor = %+v, want preserved %+v", degradedBundle.Channel, secretOps)
	}

	if len(snapshot.Degraded) != 1 || snapshot.Degraded[0] != "C2" {
		t.Errorf("Degraded = %v, want [C2]", snapshot.Degraded)
	}
}

func TestRunDerivedCounters(t *testing.T) {
	channels := []models.ChannelDescriptor{
		{ID: "C1", Name: "a"},
		{ID: "C2", Name: "b"},
		{ID: "C3", Name: "c"},
	}
	perChannel := map[string]int{"C1": 3, "C2": 0, "C3": 7}

	client := &mockClient{
		listChannelsFunc: func(_ context.Context, _ string, _ int) ([]models.ChannelDescriptor, error) {
			return channels, nil
		},
		getHistoryFunc: func(_ context.Context, channelID, _ string, _ int) ([]models.MessageRecord, error) {
			msgs := make([]models.MessageRecord, perChannel[channelID])
			for i := range msgs {
				msgs[i] = models.MessageRecord{TS: fmt.Sprintf("%d.%06d", 1700000000, i)}
			}
			return msgs, nil
		},
	}

	aggregator := NewAggregator(client, testAggregatorConfig(), nil)
	snapshot, err := aggregator.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sum := 0
	for _, bundle := range snapshot.Channels {
		sum += len(bundle.Messages)
	}
	if snapshot.TotalMessages != sum {
		t.Errorf("TotalMessages = %d, want literal sum %d", snapshot.TotalMessages, sum)
	}
	if snapshot.TotalMessages != 10 {
		t.Errorf("TotalMessages = %d, want 10", snapshot.TotalMessages)
	}
	if snapshot.TotalChannels != len(snapshot.Channels) {
		t.Errorf("TotalChannels = %d, want %d", snapshot.TotalChannels, len(snapshot.Channels))
	}
}

func TestRunFatalFailures(t *testing.T) {
	authErr := &slack.APIError{Method: "auth.test", Kind: slack.KindNotAuthed}
	listErr := &slack.APIError{Method: "conversations.list", Kind: slack.KindMissingScope}
	userErr := &slack.APIError{Method: "users.list", Kind: slack.KindRateLimited}

	tests := []struct {
		name   string
		client *mockClient
	}{
		{
			name: "auth failure",
			client: &mockClient{
				testAuthFunc: func(_ context.Context) (*slack.AuthInfo, error) {
					return nil, authErr
				},
			},
		},
		{
			name: "channel listing failure",
			client: &mockClient{
				listChannelsFunc: func(_ context.Context, _ string, _ int) ([]models.ChannelDescriptor, error) {
					return nil, listErr
				},
			},
		},
		{
			name: "user listing failure",
			client: &mockClient{
				listChannelsFunc: func(_ context.Context, _ string, _ int) ([]models.ChannelDescriptor, error) {
					return []models.ChannelDescriptor{{ID: "C1"}}, nil
				},
				listUsersFunc: func(_ context.Context, _ int) ([]models.UserRecord, error) {
					return nil, userErr
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aggregator := NewAggregator(tt.client, testAggregatorConfig(), nil)
			snapshot, err := aggregator.Run(context.Background())
			if err == nil {
				t.Fatal("expected fatal error")
			}
			if snapshot != nil {
				t.Errorf("fatal failure produced a partial snapshot: %+v", snapshot)
			}
		})
	}
}

// recordingReporter collects events for assertions.
type recordingReporter struct {
	events []Event
}

func (r *recordingReporter) Report(ev Event) {
	r.events = append(r.events, ev)
}

func TestRunEmitsProgressEvents(t *testing.T) {
	client := &mockClient{
		listChannelsFunc: func(_ context.Context, _ string, _ int) ([]models.ChannelDescriptor, error) {
			return []models.ChannelDescriptor{{ID: "C1", Name: "general"}}, nil
		},
	}

	reporter := &recordingReporter{}
	aggregator := NewAggregator(client, testAggregatorConfig(), reporter)
	if _, err := aggregator.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantStages := []Stage{StageAuth, StageChannels, StageUsers, StageHarvest, StageDone}
	if len(reporter.events) != len(wantStages) {
		t.Fatalf("got %d events, want %d", len(reporter.events), len(wantStages))
	}
	for i, want := range wantStages {
		if reporter.events[i].Stage != want {
			t.Errorf("event %d stage = %s, want %s", i, reporter.events[i].Stage, want)
		}
	}
}

func TestRunDegradedHarvestEventCarriesError(t *testing.T) {
	client := &mockClient{
		listChannelsFunc: func(_ context.Context, _ string, _ int) ([]models.ChannelDescriptor, error) {
			return []models.ChannelDescriptor{{ID: "C1", Name: "locked"}}, nil
		},
		getHistoryFunc: func(_ context.Context, _, _ string, _ int) ([]models.MessageRecord, error) {
			return nil, &slack.APIError{Method: "conversations.history", Kind: slack.KindMissingScope}
		},
	}

	reporter := &recordingReporter{}
	aggregator := NewAggregator(client, testAggregatorConfig(), reporter)
	if _, err := aggregator.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var harvest *Event
	for i := range reporter.events {
		if reporter.events[i].Stage == StageHarvest {
			harvest = &reporter.events[i]
			break
		}
	}
	if harvest == nil {
		t.Fatal("no harvest event emitted")
	}
	if !harvest.Degraded {
		t.Error("harvest event not marked degraded")
	}
	if harvest.Error == "" {
		t.Error("degraded harvest event has empty error")
	}
}
