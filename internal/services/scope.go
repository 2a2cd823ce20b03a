package services

import (
	"sync"

	"design-portal-backend/internal/docstore"
)

// Scope owns a message thread: a user's general thread when ProjectID is
// empty, otherwise one of that user's projects.
type Scope struct {
	UserID    string
	ProjectID string
}

func GeneralScope(userID string) Scope {
	return Scope{UserID: userID}
}

func ProjectScope(userID, projectID string) Scope {
	return Scope{UserID: userID, ProjectID: projectID}
}

func (s Scope) IsProject() bool {
	return s.ProjectID != ""
}

func (s Scope) MessagesCollection() string {
	return docstore.MessagesPath(s.UserID, s.ProjectID)
}

func (s Scope) validate() error {
	if s.UserID == "" {
		return invalid("user id is required")
	}
	return nil
}

func (s Scope) validateProject() error {
	if err := s.validate(); err != nil {
		return err
	}
	if s.ProjectID == "" {
		return invalid("project id is required")
	}
	return nil
}

// keyedMutex serializes work per key. An entry exists only while some
// goroutine holds or waits for its lock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
