package calsync

import (
	"sync"
	"time"
)

// AuthTypeServiceAccount is the only supported auth type.
const AuthTypeServiceAccount = "service_account"

// Status is the connection summary reported to admin tooling.
type Status struct {
	Connected  bool       `json:"connected"`
	CalendarID string     `json:"calendarId"`
	LastSync   *time.Time `json:"lastSync"`
	AuthType   string     `json:"authType"`
}

// State is the process-wide synchronization state. It starts empty at process
// start and is safe for concurrent use.
type State struct {
	mu         sync.RWMutex
	connected  bool
	calendarID string
	lastSync   time.Time
	authType   string
}

// NewState returns an empty State for authType.
func NewState(authType string) *State {
	return &State{authType: authType}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Connected:  s.connected,
		CalendarID: s.calendarID,
		AuthType:   s.authType,
	}
	if !s.lastSync.IsZero() {
		last := s.lastSync
		st.LastSync = &last
	}
	return st
}

func (s *State) setConnection(connected bool, calendarID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	if calendarID != "" {
		s.calendarID = calendarID
	}
}

func (s *State) recordSync(calendarID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.calendarID = calendarID
	if at.After(s.lastSync) {
		s.lastSync = at
	}
}

// Reset clears the state.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.calendarID = ""
	s.lastSync = time.Time{}
}
