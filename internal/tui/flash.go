package tui

import (
	"sync"
	"time"
)

// Flash is the transient notice rendered in the status bar. A notice is
// visible until its deadline passes; reads after that return "".
type Flash struct {
	mu       sync.RWMutex
	text     string
	deadline time.Time
}

// NewFlash returns an empty flash.
func NewFlash() *Flash {
	return &Flash{}
}

// Set replaces the current notice, visible for ttl.
func (f *Flash) Set(text string, ttl time.Duration) {
	f.mu.Lock()
	f.text = text
	f.deadline = time.Now().Add(ttl)
	f.mu.Unlock()
}

// Get returns the active notice, or "" once it has expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.deadline) {
		return ""
	}
	return f.text
}

// Clear drops the notice immediately.
func (f *Flash) Clear() {
	f.mu.Lock()
	f.text = ""
	f.deadline = time.Time{}
	f.mu.Unlock()
}
