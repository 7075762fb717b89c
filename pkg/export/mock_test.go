package export

import (
	"context"
	"sync/atomic"

	"github.com/teamexport/slacksnap/pkg/models"
	"github.com/teamexport/slacksnap/pkg/slack"
)

// mockClient implements slack.Client for testing
type mockClient struct {
	testAuthFunc     func(ctx context.Context) (*slack.AuthInfo, error)
	listChannelsFunc func(ctx context.Context, types string, limit int) ([]models.ChannelDescriptor, error)
	listUsersFunc    func(ctx context.Context, limit int) ([]models.UserRecord, error)
	getHistoryFunc   func(ctx context.Context, channelID, oldest string, limit int) ([]models.MessageRecord, error)
	fetchBytesFunc   func(ctx context.Context, fileURL string) ([]byte, error)

	fetchCalls int32
}

func (m *mockClient) TestAuth(ctx context.Context) (*slack.AuthInfo, error) {
	if m.testAuthFunc != nil {
		return m.testAuthFunc(ctx)
	}
	return &slack.AuthInfo{UserID: "U0BOT", Team: "testteam", TeamID: "T01"}, nil
}

func (m *mockClient) ListChannels(ctx context.Context, types string, limit int) ([]models.ChannelDescriptor, error) {
	if m.listChannelsFunc != nil {
		return m.listChannelsFunc(ctx, types, limit)
	}
	return nil, nil
}

func (m *mockClient) ListUsers(ctx context.Context, limit int) ([]models.UserRecord, error) {
	if m.listUsersFunc != nil {
		return m.listUsersFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockClient) GetHistory(ctx context.Context, channelID, oldest string, limit int) ([]models.MessageRecord, error) {
	if m.getHistoryFunc != nil {
		return m.getHistoryFunc(ctx, channelID, oldest, limit)
	}
	return nil, nil
}

func (m *mockClient) FetchBytes(ctx context.Context, fileURL string) ([]byte, error) {
	atomic.AddInt32(&m.fetchCalls, 1)
	if m.fetchBytesFunc != nil {
		return m.fetchBytesFunc(ctx, fileURL)
	}
	return []byte("fake-bytes"), nil
}

func (m *mockClient) fetchCount() int {
	return int(atomic.LoadInt32(&m.fetchCalls))
}
