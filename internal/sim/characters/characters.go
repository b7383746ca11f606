// Package characters tracks the administration's cast and their
// loyalty. Loyalty is an integer gauge in [0,100]; hitting zero makes
// a character leave, which in turn fails any card requirement naming
// them as present.
package characters

import (
	"log"
	"sort"

	"execdisorder/internal/sim/bus"
)

const (
	loyalAt   = 80
	hostileAt = 20
)

type Character struct {
	ID        string
	Name      string
	Title     string
	Archetype string

	Loyalty int
	Active  bool

	startLoyalty int
}

// Bus event payloads.
type (
	LoyaltyChanged struct {
		ID  string
		Old int
		New int
	}
	BecameLoyal   struct{ ID string }
	BecameHostile struct{ ID string }
	Left          struct{ ID string }
)

type Roster struct {
	byID  map[string]*Character
	order []string
	bus   *bus.Bus
}

type Seed struct {
	ID        string
	Name      string
	Title     string
	Archetype string
	Loyalty   int
}

func NewRoster(seeds []Seed, b *bus.Bus) *Roster {
	r := &Roster{byID: map[string]*Character{}, bus: b}
	for _, s := range seeds {
		if s.ID == "" {
			continue
		}
		if _, dup := r.byID[s.ID]; dup {
			log.Printf("[characters] duplicate character id %q ignored", s.ID)
			continue
		}
		r.byID[s.ID] = &Character{
			ID:           s.ID,
			Name:         s.Name,
			Title:        s.Title,
			Archetype:    s.Archetype,
			Loyalty:      clampLoyalty(s.Loyalty),
			Active:       true,
			startLoyalty: clampLoyalty(s.Loyalty),
		}
		r.order = append(r.order, s.ID)
	}
	return r
}

// Reset restores every character to starting loyalty and active.
func (r *Roster) Reset() {
	for _, id := range r.order {
		c := r.byID[id]
		c.Loyalty = c.startLoyalty
		c.Active = true
	}
}

func (r *Roster) Get(id string) (Character, bool) {
	c, ok := r.byID[id]
	if !ok {
		return Character{}, false
	}
	return *c, true
}

// Present reports whether a character exists and is still active.
func (r *Roster) Present(id string) bool {
	c, ok := r.byID[id]
	return ok && c.Active
}

func (r *Roster) Loyalty(id string) int {
	if c, ok := r.byID[id]; ok {
		return c.Loyalty
	}
	return 0
}

// All returns the roster in load order.
func (r *Roster) All() []Character {
	out := make([]Character, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// ModifyLoyalty adjusts a character's loyalty, clamped to [0,100].
// Unknown ids are a recoverable content error: logged, skipped, false.
func (r *Roster) ModifyLoyalty(id string, delta int) bool {
	c, ok := r.byID[id]
	if !ok {
		log.Printf("[characters] loyalty change for unknown character %q skipped", id)
		return false
	}
	old := c.Loyalty
	c.Loyalty = clampLoyalty(old + delta)
	if c.Loyalty == old {
		return true
	}

	if r.bus != nil {
		bus.Publish(r.bus, LoyaltyChanged{ID: id, Old: old, New: c.Loyalty})
		if c.Loyalty >= loyalAt && old < loyalAt {
			bus.Publish(r.bus, BecameLoyal{ID: id})
		}
		if c.Loyalty <= hostileAt && old > hostileAt {
			bus.Publish(r.bus, BecameHostile{ID: id})
		}
	}

	if c.Loyalty == 0 && c.Active {
		c.Active = false
		if r.bus != nil {
			bus.Publish(r.bus, Left{ID: id})
		}
	}
	return true
}

// ModifyLoyalties applies each change independently, in sorted id
// order for determinism.
func (r *Roster) ModifyLoyalties(changes map[string]int) {
	ids := make([]string, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r.ModifyLoyalty(id, changes[id])
	}
}

// Loyalties returns the current loyalty table keyed by id.
func (r *Roster) Loyalties() map[string]int {
	out := make(map[string]int, len(r.byID))
	for id, c := range r.byID {
		out[id] = c.Loyalty
	}
	return out
}

// Restore overwrites loyalty and presence from a snapshot. Ids absent
// from the snapshot keep their starting state.
func (r *Roster) Restore(loyalties map[string]int, inactive []string) {
	r.Reset()
	for id, v := range loyalties {
		if c, ok := r.byID[id]; ok {
			c.Loyalty = clampLoyalty(v)
		}
	}
	for _, id := range inactive {
		if c, ok := r.byID[id]; ok {
			c.Active = false
		}
	}
}

// Inactive lists characters that have left, in load order.
func (r *Roster) Inactive() []string {
	var out []string
	for _, id := range r.order {
		if !r.byID[id].Active {
			out = append(out, id)
		}
	}
	return out
}

func clampLoyalty(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
