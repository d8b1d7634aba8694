package domain

// Identity is the read-only view of the signed-in user.
type Identity struct {
	ID       UserID          `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Role     ParticipantRole `json:"role,omitempty"`
	UserType UserType        `json:"user_type"`
	Avatar   string          `json:"avatar,omitempty"`
}

func (i Identity) IsEmployer() bool {
	return i.UserType == UserTypeEmployer
}
