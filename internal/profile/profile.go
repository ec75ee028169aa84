// Package profile models the identity collaborator: the active profile,
// per-profile out-of-office status, and profile-switch notification.
package profile

import "sync"

// Identity is the narrow surface the engine needs from the identity
// collaborator.
type Identity interface {
	ActiveProfileID() string
	ActiveProfileName() string
	// OutOfOffice returns the display names of every profile currently
	// marked out of office.
	OutOfOffice() []string
}

// Profile is one account identity.
type Profile struct {
	ID          string
	Name        string
	Email       string
	OutOfOffice bool
}

// Store is a mutex-guarded Identity implementation with switch
// notification. Subscribers run synchronously inside Switch so cache and
// cursor invalidation happens before any later fetch can observe the new
// profile.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	activeID string
	onSwitch []func(newProfileID string)
	onOOO    []func()
}

// NewStore builds a store from the known profiles; the first argument is
// the initially active profile ID.
func NewStore(activeID string, profiles ...Profile) *Store {
	s := &Store{profiles: make(map[string]*Profile, len(profiles)), activeID: activeID}
	for i := range profiles {
		p := profiles[i]
		s.profiles[p.ID] = &p
	}
	return s
}

// ActiveProfileID returns the active profile's ID.
func (s *Store) ActiveProfileID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveProfileName returns the active profile's display name.
func (s *Store) ActiveProfileName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[s.activeID]; ok {
		return p.Name
	}
	return ""
}

// OutOfOffice returns the names of all out-of-office profiles.
func (s *Store) OutOfOffice() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for _, p := range s.profiles {
		if p.OutOfOffice {
			names = append(names, p.Name)
		}
	}
	return names
}

// SetOutOfOffice toggles a profile's out-of-office flag and notifies
// subscribers so stale auto-reply state can be reset.
func (s *Store) SetOutOfOffice(profileID string, ooo bool) {
	s.mu.Lock()
	p, ok := s.profiles[profileID]
	if ok {
		p.OutOfOffice = ooo
	}
	handlers := append([]func(){}, s.onOOO...)
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, h := range handlers {
		h()
	}
}

// Switch makes profileID active and synchronously notifies subscribers.
func (s *Store) Switch(profileID string) {
	s.mu.Lock()
	s.activeID = profileID
	handlers := append([]func(string){}, s.onSwitch...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(profileID)
	}
}

// OnSwitch registers a profile-switch handler.
func (s *Store) OnSwitch(h func(newProfileID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwitch = append(s.onSwitch, h)
}

// OnOutOfOfficeChange registers an out-of-office toggle handler.
func (s *Store) OnOutOfOfficeChange(h func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOOO = append(s.onOOO, h)
}

var _ Identity = (*Store)(nil)
