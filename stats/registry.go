// Package stats collects named counters from the simulated components and
// prints them.
package stats

import "sync"

// An Entry is one value reported by a component.
type Entry struct {
	Location string
	What     string
	Value    float64
	Unit     string
}

// A Registry holds entries in the order they are registered.
type Registry struct {
	lock    sync.Mutex
	entries []Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a unit-less value.
func (r *Registry) Register(location, what string, value float64) {
	r.RegisterWithUnit(location, what, value, "")
}

// RegisterWithUnit adds a value with a unit.
func (r *Registry) RegisterWithUnit(
	location, what string,
	value float64,
	unit string,
) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.entries = append(r.entries, Entry{
		Location: location,
		What:     what,
		Value:    value,
		Unit:     unit,
	})
}

// Entries returns a copy of all the entries.
func (r *Registry) Entries() []Entry {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]Entry(nil), r.entries...)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.entries)
}

// Find returns the first entry with the location and the name.
func (r *Registry) Find(location, what string) (Entry, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, e := range r.entries {
		if e.Location == location && e.What == what {
			return e, true
		}
	}

	return Entry{}, false
}

// Locations returns the distinct locations in registration order.
func (r *Registry) Locations() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	seen := make(map[string]bool)

	var locations []string
	for _, e := range r.entries {
		if !seen[e.Location] {
			seen[e.Location] = true
			locations = append(locations, e.Location)
		}
	}

	return locations
}
