package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Kind says which transport a session arrived on.
type Kind string

const (
	KindRFB    Kind = "rfb"
	KindWebRTC Kind = "webrtc"
)

// Info describes one live session.
type Info struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Remote  string    `json:"remote,omitempty"`
	Started time.Time `json:"started"`
}

type entry struct {
	info  Info
	close func()
}

// Registry tracks viewers and input peers by uuid. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry), now: time.Now}
}

// Add registers a session under a fresh uuid and returns its info. closeFn
// is called at most once, by Close.
func (r *Registry) Add(kind Kind, remote string, closeFn func()) Info {
	return r.Insert(uuid.New().String(), kind, remote, closeFn)
}

// Insert registers a session under an id chosen by the caller.
func (r *Registry) Insert(id string, kind Kind, remote string, closeFn func()) Info {
	info := Info{
		ID:      id,
		Kind:    kind,
		Remote:  remote,
		Started: r.now(),
	}
	r.mu.Lock()
	r.sessions[info.ID] = &entry{info: info, close: closeFn}
	n := len(r.sessions)
	r.mu.Unlock()

	log.Infof("session: %s %s from %s (%d active)", info.Kind, info.ID, remoteOrUnknown(remote), n)
	return info
}

// Remove forgets a session without closing it.
func (r *Registry) Remove(id string) (Info, bool) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return Info{}, false
	}
	log.Infof("session: %s %s closed", e.info.Kind, id)
	return e.info, true
}

// Close removes a session and runs its close function.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	log.Infof("session: closing %s %s", e.info.Kind, id)
	if e.close != nil {
		e.close()
	}
	return true
}

// CloseAll closes every session of the given kind, or all when kind is empty.
func (r *Registry) CloseAll(kind Kind) {
	for _, info := range r.List() {
		if kind == "" || info.Kind == kind {
			r.Close(info.ID)
		}
	}
}

func (r *Registry) Get(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// List returns the live sessions, oldest first.
func (r *Registry) List() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.info)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Started.Equal(out[j].Started) {
			return out[i].Started.Before(out[j].Started)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func remoteOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
