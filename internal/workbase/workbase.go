// Package workbase holds the tracked-project type and the "active workbase"
// reference shared between tool handlers and the drift observer.
package workbase

import (
	"sync/atomic"
)

// Workbase is a tracked project directory plus its derived identifier.
type Workbase struct {
	ID          string `json:"workbase_id"`
	RootPath    string `json:"root_path,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
}

// Active is the workbase the agent is currently working in.
//
// Writers publish a complete snapshot; readers never observe a partially
// updated value. The zero value holds no workbase.
type Active struct {
	current atomic.Pointer[Workbase]
}

// NewActive returns an empty Active reference.
func NewActive() *Active {
	return &Active{}
}

// Get returns a copy of the current workbase and whether one is set.
func (a *Active) Get() (Workbase, bool) {
	wb := a.current.Load()
	if wb == nil {
		return Workbase{}, false
	}
	return *wb, true
}

// Set replaces the active workbase with wb.
func (a *Active) Set(wb Workbase) {
	a.current.Store(&wb)
}

// Publish switches the active workbase to wb, keeping the previously known
// root path and project name when wb refers to the same workbase but lacks them.
// It returns the snapshot that was stored.
func (a *Active) Publish(wb Workbase) Workbase {
	for {
		old := a.current.Load()
		next := wb
		if old != nil && old.ID == wb.ID {
			if next.RootPath == "" {
				next.RootPath = old.RootPath
			}
			if next.ProjectName == "" {
				next.ProjectName = old.ProjectName
			}
		}
		if a.current.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// Clear forgets the active workbase.
func (a *Active) Clear() {
	a.current.Store(nil)
}
