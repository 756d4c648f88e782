package device

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type State struct {
	DeviceID    string    `json:"device_id"`
	AppsVersion int64     `json:"apps_version"`
	Packages    []string  `json:"packages"`
	Online      bool      `json:"online"`
	LastSeen    time.Time `json:"last_seen"`
}

type Registry struct {
	mu   sync.RWMutex
	data map[string]State
	ttl  time.Duration
	now  func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Registry{
		data: make(map[string]State),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetApps records the packages a device reported as installed.
func (r *Registry) SetApps(deviceID string, version int64, packages []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.data[deviceID]
	// Once a device reports versioned snapshots, ignore stale or unversioned ones.
	if current.AppsVersion > 0 && version > 0 && version < current.AppsVersion {
		return
	}
	if current.AppsVersion > 0 && version == 0 {
		return
	}
	if version == 0 {
		version = current.AppsVersion
	}

	r.data[deviceID] = State{
		DeviceID:    deviceID,
		AppsVersion: version,
		Packages:    append([]string{}, packages...),
		Online:      true,
		LastSeen:    r.now(),
	}
}

func (r *Registry) SetOnline(deviceID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.data[deviceID]
	state.DeviceID = deviceID
	state.Online = online
	state.LastSeen = r.now()
	r.data[deviceID] = state
}

// Touch refreshes the liveness timestamp without changing anything else.
func (r *Registry) Touch(deviceID string) {
	r.SetOnline(deviceID, true)
}

func (r *Registry) GetState(deviceID string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.data[deviceID]
	if !ok {
		return State{}, false
	}
	out := state
	out.Packages = append([]string{}, state.Packages...)
	if r.isExpired(state) {
		out.Online = false
	}
	return out, true
}

// ListOnline returns the devices that are online and not expired, ordered by id.
func (r *Registry) ListOnline() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]State, 0, len(r.data))
	for _, state := range r.data {
		if strings.TrimSpace(state.DeviceID) == "" {
			continue
		}
		if !state.Online || r.isExpired(state) {
			continue
		}
		item := state
		item.Packages = append([]string{}, state.Packages...)
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

func (r *Registry) isExpired(state State) bool {
	if r.ttl <= 0 {
		return false
	}
	return r.now().Sub(state.LastSeen) > r.ttl
}
