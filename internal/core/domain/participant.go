package domain

type ParticipantRole string

const (
	RoleHost     ParticipantRole = "host"
	RoleAttendee ParticipantRole = "attendee"
)

type UserType string

const (
	UserTypeEmployer  UserType = "employer"
	UserTypeCandidate UserType = "candidate"
)

type Participant struct {
	UserID   UserID          `json:"user_id"`
	Name     string          `json:"name,omitempty"`
	Avatar   string          `json:"avatar,omitempty"`
	Email    string          `json:"email,omitempty"`
	Role     ParticipantRole `json:"role"`
	IsHost   bool            `json:"is_host,omitempty"`
	UserType UserType        `json:"user_type,omitempty"`
}

func (p Participant) Hosting() bool {
	return p.Role == RoleHost || p.IsHost
}
