package models

// UserRecord represents a workspace user as returned by the user listing.
// Records are immutable once fetched and are keyed by ID in the
// workspace-wide user index for the duration of an export run.
type UserRecord struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	RealName string      `json:"real_name,omitempty"`
	Color    string      `json:"color,omitempty"`
	IsAdmin  bool        `json:"is_admin,omitempty"`
	IsOwner  bool        `json:"is_owner,omitempty"`
	IsBot    bool        `json:"is_bot,omitempty"`
	Deleted  bool        `json:"deleted,omitempty"`
	Profile  UserProfile `json:"profile"`
}

// UserProfile holds the display attributes nested under a user record.
type UserProfile struct {
	DisplayName string `json:"display_name,omitempty"`
	RealName    string `json:"real_name,omitempty"`
	Image24     string `json:"image_24,omitempty"`
	Image72     string `json:"image_72,omitempty"`
	Image192    string `json:"image_192,omitempty"`
}

// DisplayName resolves the name to show for a user: the profile display
// name, falling back to the real name, falling back to the handle.
func (u UserRecord) DisplayName() string {
	if u.Profile.DisplayName != "" {
		return u.Profile.DisplayName
	}
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

// ResolvedRealName returns the real name, falling back to the handle.
func (u UserRecord) ResolvedRealName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

// ChannelDescriptor carries a channel's identity and metadata as known at
// harvest start. It is immutable afterward and is always present in the
// final snapshot, even when history retrieval for the channel failed.
type ChannelDescriptor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Created    int64  `json:"created"`
	Creator    string `json:"creator,omitempty"`
	IsArchived bool   `json:"is_archived"`
	IsGeneral  bool   `json:"is_general"`
	IsPrivate  bool   `json:"is_private,omitempty"`
	NumMembers int    `json:"num_members"`
	Purpose    string `json:"purpose,omitempty"`
	Topic      string `json:"topic,omitempty"`
}

// EmbeddedPayload is the inlined content of a fetched file: the raw bytes
// as base64 text plus the mimetype they were served with.
type EmbeddedPayload struct {
	Data     string `json:"data"`
	Mimetype string `json:"mimetype"`
}

// FileDescriptor describes a file attached to a message. Embedded is nil
// for reference-only files; attaching a payload is a one-way upgrade that
// never alters the other fields.
type FileDescriptor struct {
	ID         string           `json:"id"`
	Name       string           `json:"name,omitempty"`
	Mimetype   string           `json:"mimetype,omitempty"`
	Size       int64            `json:"size"`
	URLPrivate string           `json:"url_private,omitempty"`
	Embedded   *EmbeddedPayload `json:"embedded,omitempty"`
}

// Reaction is an emoji reaction aggregated over a message.
type Reaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AuthorProfile is the denormalized point-in-time snapshot of a message
// author's display profile attached during enrichment, so that consumers
// of a snapshot do not need the user index to render a message.
type AuthorProfile struct {
	DisplayName string `json:"display_name"`
	RealName    string `json:"real_name"`
	Avatar      string `json:"avatar,omitempty"`
}

// MessageRecord is a single message in a channel's history. TS is unique
// within its channel and monotonically comparable. Author is nil until
// enrichment, and stays nil when the author is unknown.
type MessageRecord struct {
	TS        string           `json:"ts"`
	UserID    string           `json:"user,omitempty"`
	Text      string           `json:"text"`
	Subtype   string           `json:"subtype,omitempty"`
	ThreadTS  string           `json:"thread_ts,omitempty"`
	Files     []FileDescriptor `json:"files,omitempty"`
	Reactions []Reaction       `json:"reactions,omitempty"`
	Author    *AuthorProfile   `json:"author,omitempty"`
}

// ChannelBundle pairs a channel descriptor with its enriched history in
// chronological order. A degraded bundle has an empty message list but a
// fully populated descriptor.
type ChannelBundle struct {
	Channel  ChannelDescriptor `json:"channel"`
	Messages []MessageRecord   `json:"messages"`
}
