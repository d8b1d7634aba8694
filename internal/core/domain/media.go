package domain

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// CallState is the lifecycle state of the media session controller.
type CallState string

const (
	CallIdle               CallState = "idle"
	CallAwaitingCredential CallState = "awaiting_credential"
	CallJoining            CallState = "joining"
	CallJoined             CallState = "joined"
	CallLeaving            CallState = "leaving"
	CallError              CallState = "error"
)

type RemoteEventType string

const (
	RemotePublished   RemoteEventType = "published"
	RemoteUnpublished RemoteEventType = "unpublished"
	RemoteLeft        RemoteEventType = "left"
)

// RemoteEvent is emitted by the transport for another participant in the channel.
// Kind is empty for RemoteLeft.
type RemoteEvent struct {
	Type     RemoteEventType `json:"type"`
	RemoteID UserID          `json:"remote_id"`
	Kind     MediaKind       `json:"kind,omitempty"`
}

type TrackStatus struct {
	Present bool `json:"present"`
	Enabled bool `json:"enabled"`
	Pending bool `json:"pending,omitempty"`
}

type RemoteStatus struct {
	ID          UserID      `json:"id"`
	DisplayName string      `json:"display_name"`
	Kinds       []MediaKind `json:"kinds"`
}

// RetryTarget tells the UI where a retry from the error state leads.
type RetryTarget string

const (
	RetryNone       RetryTarget = ""
	RetryCredential RetryTarget = "awaiting_credential"
	RetryJoin       RetryTarget = "joining"
)

// CallStatus is the observable snapshot the UI binds to.
type CallStatus struct {
	State     CallState      `json:"state"`
	MeetingID MeetingID      `json:"meeting_id,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Audio     TrackStatus    `json:"audio"`
	Video     TrackStatus    `json:"video"`
	Remotes   []RemoteStatus `json:"remotes"`
	Warnings  []string       `json:"warnings,omitempty"`
	Blocking  string         `json:"blocking,omitempty"`
	Error     string         `json:"error,omitempty"`
	Retry     RetryTarget    `json:"retry,omitempty"`
	Version   uint64         `json:"version"`
}
