package services

import (
	"strings"

	"interviewroom/internal/core/domain"
	"interviewroom/pkg/utils"
)

type MatchKind string

const (
	MatchByID    MatchKind = "id"
	MatchByEmail MatchKind = "email"
	MatchByName  MatchKind = "name"
)

// DirectoryOptions controls identity reconciliation.
type DirectoryOptions struct {
	// FuzzyNameMatch enables the name-fragment fallback for participant records that were seeded
	// without consistent ids. It is a best-effort reconciliation, not an access check.
	FuzzyNameMatch bool
	// MinFragmentLen ignores name fragments shorter than this.
	MinFragmentLen int
}

func DefaultDirectoryOptions() DirectoryOptions {
	return DirectoryOptions{
		FuzzyNameMatch: true,
		MinFragmentLen: 3,
	}
}

// ParticipantDirectory is a read-only view of a meeting's declared participants.
type ParticipantDirectory struct {
	participants []domain.Participant
	byID         map[domain.UserID]int
	opts         DirectoryOptions
}

func NewParticipantDirectory(meeting *domain.Meeting, opts DirectoryOptions) *ParticipantDirectory {
	d := &ParticipantDirectory{
		byID: make(map[domain.UserID]int),
		opts: opts,
	}
	if meeting == nil {
		return d
	}
	d.participants = make([]domain.Participant, len(meeting.Participants))
	copy(d.participants, meeting.Participants)
	for i, p := range d.participants {
		if p.UserID == "" {
			continue
		}
		// first declaration wins for duplicated ids
		if _, exists := d.byID[p.UserID]; !exists {
			d.byID[p.UserID] = i
		}
	}
	return d
}

func (d *ParticipantDirectory) Participants() []domain.Participant {
	out := make([]domain.Participant, len(d.participants))
	copy(out, d.participants)
	return out
}

func (d *ParticipantDirectory) FindByUserID(id domain.UserID) (domain.Participant, bool) {
	i, ok := d.byID[id]
	if !ok {
		return domain.Participant{}, false
	}
	return d.participants[i], true
}

// Host returns the first participant marked as host in list order.
func (d *ParticipantDirectory) Host() (domain.Participant, bool) {
	for _, p := range d.participants {
		if p.Hosting() {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func (d *ParticipantDirectory) Candidates() []domain.Participant {
	var out []domain.Participant
	for _, p := range d.participants {
		if p.UserType == domain.UserTypeCandidate {
			out = append(out, p)
		}
	}
	return out
}

// ResolveDisplayName never returns an empty string.
func (d *ParticipantDirectory) ResolveDisplayName(id domain.UserID) string {
	if p, ok := d.FindByUserID(id); ok {
		if name := utils.SanitizeDisplayName(p.Name); name != "" {
			return name
		}
	}
	if id == "" {
		return "Guest"
	}
	return string(id)
}

// MatchIdentity finds the participant record of the given user: exact id first, then exact
// email, then (when enabled) a name-fragment match restricted to records whose user type or
// role agrees with the identity.
func (d *ParticipantDirectory) MatchIdentity(user domain.Identity) (domain.Participant, MatchKind, bool) {
	if user.ID != "" {
		if p, ok := d.FindByUserID(user.ID); ok {
			return p, MatchByID, true
		}
	}

	if email := utils.NormalizeEmail(user.Email); email != "" {
		for _, p := range d.participants {
			if utils.NormalizeEmail(p.Email) == email {
				return p, MatchByEmail, true
			}
		}
	}

	if !d.opts.FuzzyNameMatch {
		return domain.Participant{}, "", false
	}

	fragments := nameFragments(user.Name, d.opts.MinFragmentLen)
	if len(fragments) == 0 {
		return domain.Participant{}, "", false
	}
	for _, p := range d.participants {
		if !sameKind(p, user) {
			continue
		}
		name := strings.ToLower(p.Name)
		for _, f := range fragments {
			if strings.Contains(name, f) {
				return p, MatchByName, true
			}
		}
	}
	return domain.Participant{}, "", false
}

func (d *ParticipantDirectory) Contains(user domain.Identity) bool {
	_, _, ok := d.MatchIdentity(user)
	return ok
}

func sameKind(p domain.Participant, user domain.Identity) bool {
	if p.UserType != "" && user.UserType != "" && p.UserType == user.UserType {
		return true
	}
	return p.Role != "" && user.Role != "" && p.Role == user.Role
}

func nameFragments(name string, minLen int) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(name)) {
		if len([]rune(f)) >= minLen {
			out = append(out, f)
		}
	}
	return out
}

