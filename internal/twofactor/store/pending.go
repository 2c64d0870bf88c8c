package store

import (
	"sort"
	"sync"
)

// Write is one staged attribute write. An empty Value is a delete.
type Write struct {
	Key   string
	Value string
}

// Pending tracks writes staged by Attributes.Set until Persist takes them.
// Drivers embed it to share the staging semantics.
type Pending struct {
	mu    sync.Mutex
	users map[string]map[string]string
}

func NewPending() *Pending {
	return &Pending{users: make(map[string]map[string]string)}
}

// Stage records value for key, replacing any earlier staged value.
func (p *Pending) Stage(userID, key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	staged, ok := p.users[userID]
	if !ok {
		staged = make(map[string]string)
		p.users[userID] = staged
	}
	staged[key] = value
}

// Lookup returns the staged value for key, if any.
func (p *Pending) Lookup(userID, key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.users[userID][key]
	return v, ok
}

// Take removes and returns the user's staged writes ordered by key.
func (p *Pending) Take(userID string) []Write {
	p.mu.Lock()
	staged := p.users[userID]
	delete(p.users, userID)
	p.mu.Unlock()

	writes := make([]Write, 0, len(staged))
	for k, v := range staged {
		writes = append(writes, Write{Key: k, Value: v})
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Key < writes[j].Key })
	return writes
}
