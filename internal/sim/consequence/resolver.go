package consequence

import (
	"log"

	"execdisorder/internal/sim/bus"
	"execdisorder/internal/sim/characters"
	"execdisorder/internal/sim/resources"
)

// Bus event payloads.
type (
	// GameEvent is a named, payload-free event raised by an
	// "event:<name>" directive.
	GameEvent struct{ Name string }

	// NewsHeadline is raised by a "news:<text>" directive.
	NewsHeadline struct{ Text string }
)

// Resolver applies compiled directives to their targets.
type Resolver struct {
	ledger *resources.Ledger
	roster *characters.Roster
	bus    *bus.Bus
}

func NewResolver(ledger *resources.Ledger, roster *characters.Roster, b *bus.Bus) *Resolver {
	return &Resolver{ledger: ledger, roster: roster, bus: b}
}

// Apply dispatches each directive in order. A directive whose target
// is missing (no roster loaded, unknown character) is logged and
// skipped; application of the rest continues.
func (r *Resolver) Apply(ds []Directive) {
	for _, d := range ds {
		r.applyOne(d)
	}
}

func (r *Resolver) applyOne(d Directive) {
	switch d.Kind {
	case DirResource:
		if r.ledger == nil {
			log.Printf("[consequence] no ledger; %q skipped", d.Raw())
			return
		}
		r.ledger.Modify(d.Resource, d.ResourceDelta)

	case DirLoyalty:
		if r.roster == nil {
			log.Printf("[consequence] no roster; %q skipped", d.Raw())
			return
		}
		r.roster.ModifyLoyalty(d.CharacterID, d.LoyaltyDelta)

	case DirEvent:
		if r.bus != nil {
			bus.Publish(r.bus, GameEvent{Name: d.EventName})
		}

	case DirNews:
		if r.bus != nil {
			bus.Publish(r.bus, NewsHeadline{Text: d.Headline})
		}

	default:
		log.Printf("[consequence] unhandled directive kind %d (%q)", d.Kind, d.Raw())
	}
}
