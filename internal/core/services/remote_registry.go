package services

import (
	"context"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"
)

type remoteSlot struct {
	track  ports.RemoteTrack
	cancel context.CancelFunc
}

type remoteEntry struct {
	id      domain.UserID
	tracks  map[domain.MediaKind]*remoteSlot
	pending map[domain.MediaKind]uint64
}

// remoteRegistry maps remote participants to their subscribed tracks. Presence follows the
// latest event: an entry appears on published and disappears on left, and a subscription that
// resolves after its entry or media kind went away is rejected by sequence number.
// Not safe for concurrent use; the controller loop owns it.
type remoteRegistry struct {
	entries map[domain.UserID]*remoteEntry
	order   []domain.UserID
	seq     uint64
}

func newRemoteRegistry() *remoteRegistry {
	return &remoteRegistry{entries: make(map[domain.UserID]*remoteEntry)}
}

func (r *remoteRegistry) ensure(id domain.UserID) *remoteEntry {
	if e, ok := r.entries[id]; ok {
		return e
	}
	e := &remoteEntry{
		id:      id,
		tracks:  make(map[domain.MediaKind]*remoteSlot),
		pending: make(map[domain.MediaKind]uint64),
	}
	r.entries[id] = e
	r.order = append(r.order, id)
	return e
}

// markPublished records a pending subscription and returns its sequence number.
func (r *remoteRegistry) markPublished(id domain.UserID, kind domain.MediaKind) uint64 {
	e := r.ensure(id)
	r.seq++
	e.pending[kind] = r.seq
	return r.seq
}

// attach stores a resolved subscription. It returns false when the subscription is stale.
// A track already registered for the same kind is returned for release.
func (r *remoteRegistry) attach(id domain.UserID, kind domain.MediaKind, seq uint64, slot *remoteSlot) (*remoteSlot, bool) {
	e, ok := r.entries[id]
	if !ok || e.pending[kind] != seq {
		return nil, false
	}
	delete(e.pending, kind)
	replaced := e.tracks[kind]
	e.tracks[kind] = slot
	return replaced, true
}

func (r *remoteRegistry) clearPending(id domain.UserID, kind domain.MediaKind, seq uint64) {
	if e, ok := r.entries[id]; ok && e.pending[kind] == seq {
		delete(e.pending, kind)
	}
}

// unpublish drops one media kind and keeps the participant present.
func (r *remoteRegistry) unpublish(id domain.UserID, kind domain.MediaKind) *remoteSlot {
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	delete(e.pending, kind)
	slot := e.tracks[kind]
	delete(e.tracks, kind)
	return slot
}

func (r *remoteRegistry) remove(id domain.UserID) []*remoteSlot {
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	delete(r.entries, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return slotsOf(e)
}

func (r *remoteRegistry) clear() []*remoteSlot {
	var out []*remoteSlot
	for _, id := range r.order {
		out = append(out, slotsOf(r.entries[id])...)
	}
	r.entries = make(map[domain.UserID]*remoteEntry)
	r.order = nil
	return out
}

func (r *remoteRegistry) has(id domain.UserID) bool {
	_, ok := r.entries[id]
	return ok
}

func (r *remoteRegistry) track(id domain.UserID, kind domain.MediaKind) (ports.RemoteTrack, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	slot, ok := e.tracks[kind]
	if !ok {
		return nil, false
	}
	return slot.track, true
}

func (r *remoteRegistry) len() int {
	return len(r.entries)
}

func (r *remoteRegistry) snapshot(dir *ParticipantDirectory) []domain.RemoteStatus {
	out := make([]domain.RemoteStatus, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		status := domain.RemoteStatus{
			ID:          id,
			DisplayName: dir.ResolveDisplayName(id),
			Kinds:       []domain.MediaKind{},
		}
		for _, kind := range []domain.MediaKind{domain.MediaAudio, domain.MediaVideo} {
			if _, ok := e.tracks[kind]; ok {
				status.Kinds = append(status.Kinds, kind)
			}
		}
		out = append(out, status)
	}
	return out
}

func slotsOf(e *remoteEntry) []*remoteSlot {
	if e == nil {
		return nil
	}
	var out []*remoteSlot
	for _, kind := range []domain.MediaKind{domain.MediaAudio, domain.MediaVideo} {
		if slot, ok := e.tracks[kind]; ok {
			out = append(out, slot)
		}
	}
	return out
}
