// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"sync"
)

// SessionHolder keeps the download client session cookie. One holder is shared by
// every acquisition against the same account; writes are last-writer-wins.
type SessionHolder struct {
	mu     sync.RWMutex
	cookie string
	valid  bool
}

func NewSessionHolder() *SessionHolder {
	return &SessionHolder{}
}

// Get returns the cached cookie and whether a session is active. An active session
// may carry an empty cookie when the client has authentication disabled.
func (s *SessionHolder) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cookie, s.valid
}

func (s *SessionHolder) Set(cookie string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = cookie
	s.valid = true
}

func (s *SessionHolder) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = ""
	s.valid = false
}
