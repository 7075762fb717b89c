package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/teamexport/slacksnap/pkg/models"
)

// DefaultBaseURL is the Slack Web API endpoint.
const DefaultBaseURL = "https://slack.com/api"

// maxPageSize is the largest page the conversations/users endpoints accept.
const maxPageSize = 200

// Client is the remote workspace operations the export pipeline depends
// on. Failures are reported as *APIError with the remote error kind.
type Client interface {
	// TestAuth verifies the token and returns the authed identity.
	TestAuth(ctx context.Context) (*AuthInfo, error)

	// ListChannels lists channels of the given comma-separated types
	// ("public_channel,private_channel"), up to limit records.
	ListChannels(ctx context.Context, types string, limit int) ([]models.ChannelDescriptor, error)

	// ListUsers lists workspace users up to limit records.
	ListUsers(ctx context.Context, limit int) ([]models.UserRecord, error)

	// GetHistory fetches a channel's messages no older than oldest
	// (a Slack ts string), up to limit records, in chronological order.
	GetHistory(ctx context.Context, channelID, oldest string, limit int) ([]models.MessageRecord, error)

	// FetchBytes downloads a file's content from its private URL using
	// the client's credentials.
	FetchBytes(ctx context.Context, fileURL string) ([]byte, error)
}

// AuthInfo identifies the authenticated token.
type AuthInfo struct {
	UserID string `json:"user_id"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
	Team   string `json:"team"`
}

// APIClient talks to the Slack Web API over HTTP.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient creates a client for the given bot token.
func NewAPIClient(token string) *APIClient {
	return &APIClient{
		baseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (c *APIClient) WithBaseURL(base string) *APIClient {
	c.baseURL = base
	return c
}

// apiEnvelope is the common shape of every Web API response.
type apiEnvelope struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Metadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type wireTopic struct {
	Value string `json:"value"`
}

type wireChannel struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Created    int64     `json:"created"`
	Creator    string    `json:"creator"`
	IsArchived bool      `json:"is_archived"`
	IsGeneral  bool      `json:"is_general"`
	IsPrivate  bool      `json:"is_private"`
	NumMembers int       `json:"num_members"`
	Purpose    wireTopic `json:"purpose"`
	Topic      wireTopic `json:"topic"`
}

func (w wireChannel) descriptor() models.ChannelDescriptor {
	return models.ChannelDescriptor{
		ID:         w.ID,
		Name:       w.Name,
		Created:    w.Created,
		Creator:    w.Creator,
		IsArchived: w.IsArchived,
		IsGeneral:  w.IsGeneral,
		IsPrivate:  w.IsPrivate,
		NumMembers: w.NumMembers,
		Purpose:    w.Purpose.Value,
		Topic:      w.Topic.Value,
	}
}

type wireFile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Mimetype   string `json:"mimetype"`
	Size       int64  `json:"size"`
	URLPrivate string `json:"url_private"`
}

type wireReaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type wireMessage struct {
	TS        string         `json:"ts"`
	User      string         `json:"user"`
	Text      string         `json:"text"`
	Subtype   string         `json:"subtype"`
	ThreadTS  string         `json:"thread_ts"`
	Files     []wireFile     `json:"files"`
	Reactions []wireReaction `json:"reactions"`
}

func (w wireMessage) record() models.MessageRecord {
	msg := models.MessageRecord{
		TS:       w.TS,
		UserID:   w.User,
		Text:     w.Text,
		Subtype:  w.Subtype,
		ThreadTS: w.ThreadTS,
	}
	for _, f := range w.Files {
		msg.Files = append(msg.Files, models.FileDescriptor{
			ID:         f.ID,
			Name:       f.Name,
			Mimetype:   f.Mimetype,
			Size:       f.Size,
			URLPrivate: f.URLPrivate,
		})
	}
	for _, r := range w.Reactions {
		msg.Reactions = append(msg.Reactions, models.Reaction{Name: r.Name, Count: r.Count})
	}
	return msg
}

// TestAuth calls auth.test.
func (c *APIClient) TestAuth(ctx context.Context) (*AuthInfo, error) {
	var resp struct {
		apiEnvelope
		AuthInfo
	}
	if err := c.call(ctx, "auth.test", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, newAPIError("auth.test", classify(resp.Error))
	}
	return &resp.AuthInfo, nil
}

// ListChannels calls conversations.list, following cursors until limit
// records have been collected or the listing is exhausted.
func (c *APIClient) ListChannels(ctx context.Context, types string, limit int) ([]models.ChannelDescriptor, error) {
	var channels []models.ChannelDescriptor
	cursor := ""

	for {
		params := url.Values{}
		params.Set("types", types)
		params.Set("exclude_archived", "false")
		params.Set("limit", strconv.Itoa(pageSize(limit-len(channels))))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp struct {
			apiEnvelope
			Channels []wireChannel `json:"channels"`
		}
		if err := c.call(ctx, "conversations.list", params, &resp); err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, newAPIError("conversations.list", classify(resp.Error))
		}

		for _, ch := range resp.Channels {
			channels = append(channels, ch.descriptor())
		}

		cursor = resp.Metadata.NextCursor
		if cursor == "" || len(channels) >= limit {
			break
		}
	}

	if len(channels) > limit {
		channels = channels[:limit]
	}
	return channels, nil
}

// ListUsers calls users.list, following cursors up to limit records.
func (c *APIClient) ListUsers(ctx context.Context, limit int) ([]models.UserRecord, error) {
	var users []models.UserRecord
	cursor := ""

	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(pageSize(limit-len(users))))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp struct {
			apiEnvelope
			Members []models.UserRecord `json:"members"`
		}
		if err := c.call(ctx, "users.list", params, &resp); err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, newAPIError("users.list", classify(resp.Error))
		}

		users = append(users, resp.Members...)

		cursor = resp.Metadata.NextCursor
		if cursor == "" || len(users) >= limit {
			break
		}
	}

	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// GetHistory calls conversations.history. The API returns newest-first;
// the result is reversed so callers always see chronological order.
func (c *APIClient) GetHistory(ctx context.Context, channelID, oldest string, limit int) ([]models.MessageRecord, error) {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("limit", strconv.Itoa(pageSize(limit)))
	if oldest != "" {
		params.Set("oldest", oldest)
	}

	var resp struct {
		apiEnvelope
		Messages []wireMessage `json:"messages"`
	}
	if err := c.call(ctx, "conversations.history", params, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, newAPIError("conversations.history", classify(resp.Error))
	}

	messages := make([]models.MessageRecord, 0, len(resp.Messages))
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		messages = append(messages, resp.Messages[i].record())
	}
	return messages, nil
}

// FetchBytes downloads a private file URL with the bearer token attached.
func (c *APIClient) FetchBytes(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, transportError("file.fetch", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError("file.fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, transportError("file.fetch", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	return io.ReadAll(resp.Body)
}

// call performs one Web API request and decodes the JSON body into out.
func (c *APIClient) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + "/" + method
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return transportError(method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return newAPIError(method, KindRateLimited)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(method, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classify maps a Web API error string onto the declared taxonomy.
func classify(code string) ErrorKind {
	switch code {
	case "not_authed", "invalid_auth", "token_revoked", "account_inactive":
		return KindNotAuthed
	case "missing_scope", "not_allowed_token_type":
		return KindMissingScope
	case "ratelimited", "rate_limited":
		return KindRateLimited
	default:
		return ErrorKind(code)
	}
}

func pageSize(remaining int) int {
	if remaining > maxPageSize || remaining <= 0 {
		return maxPageSize
	}
	return remaining
}
