package db

import (
	"context"
	"sync"
)

// StaticDirectory is an in-memory Directory
type StaticDirectory struct {
	mu    sync.RWMutex
	links map[string]map[string]bool
}

var _ Directory = (*StaticDirectory)(nil)

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{links: map[string]map[string]bool{}}
}

func (d *StaticDirectory) SetRelationship(ctx context.Context, agencyID, facilityID string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.links[agencyID] == nil {
		d.links[agencyID] = map[string]bool{}
	}
	if active {
		d.links[agencyID][facilityID] = true
	} else {
		delete(d.links[agencyID], facilityID)
	}
	return nil
}

func (d *StaticDirectory) ActiveFacilities(ctx context.Context, agencyID string) (map[string]bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	facilities := make(map[string]bool, len(d.links[agencyID]))
	for id := range d.links[agencyID] {
		facilities[id] = true
	}
	return facilities, nil
}
