// Package deck owns the decision-card piles: an ordered draw pile, a
// discard pile, and at most one card currently presented. Cards move
// between piles but are never copied or fabricated, so draw + discard +
// current always partitions the loaded card set plus any injected
// follow-ups.
package deck

import (
	"log"
	"math/rand"
	"sort"

	"execdisorder/internal/sim/bus"
	"execdisorder/internal/sim/catalogs"
	"execdisorder/internal/sim/characters"
	"execdisorder/internal/sim/consequence"
	"execdisorder/internal/sim/resources"
)

type (
	// CardPresented fires when a card becomes current.
	CardPresented struct {
		CardID string
		// Forced is set when eligibility filtering exhausted its
		// attempt budget and the card was presented anyway.
		Forced bool
	}
	// CardResolved fires after an option's effects have been applied.
	CardResolved struct {
		CardID      string
		OptionIndex int
	}
	// DeckEmpty fires when a draw is requested with both piles empty.
	// The caller decides what exhaustion means; the deck does not.
	DeckEmpty struct{}
	// DeckShuffled fires whenever the draw pile is permuted.
	DeckShuffled struct{ Cards int }
)

// Deck draws the next eligible card and resolves player choices against
// the ledger, the roster, and the directive resolver. All randomness
// flows through the injected rng, so two decks built from the same seed
// and fed the same calls produce the same sequence.
type Deck struct {
	catalog  *catalogs.CardCatalog
	ledger   *resources.Ledger
	roster   *characters.Roster
	resolver *consequence.Resolver
	bus      *bus.Bus
	rng      *rand.Rand
	day      func() int

	draw    []string
	discard []string
	current string
	played  map[string]bool
}

// New builds a deck over the full catalog and shuffles the draw pile.
// day reports the current session day for eligibility checks.
func New(catalog *catalogs.CardCatalog, ledger *resources.Ledger, roster *characters.Roster,
	resolver *consequence.Resolver, b *bus.Bus, rng *rand.Rand, day func() int) *Deck {
	d := &Deck{
		catalog:  catalog,
		ledger:   ledger,
		roster:   roster,
		resolver: resolver,
		bus:      b,
		rng:      rng,
		day:      day,
		played:   make(map[string]bool),
	}
	d.draw = append(d.draw, catalog.Order...)
	d.Shuffle()
	return d
}

// Shuffle permutes the draw pile in place.
func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.draw), func(i, j int) {
		d.draw[i], d.draw[j] = d.draw[j], d.draw[i]
	})
	bus.Publish(d.bus, DeckShuffled{Cards: len(d.draw)})
}

// drawOne pops the front of the draw pile, reshuffling the discard
// into it first if needed. Returns false with a DeckEmpty notification
// when both piles are exhausted.
func (d *Deck) drawOne() (string, bool) {
	if len(d.draw) == 0 {
		if len(d.discard) == 0 {
			bus.Publish(d.bus, DeckEmpty{})
			return "", false
		}
		d.draw = d.discard
		d.discard = nil
		d.Shuffle()
	}
	id := d.draw[0]
	d.draw = d.draw[1:]
	return id, true
}

// PresentNextCard draws until an eligible card turns up, pushing
// ineligible cards to the back of the draw pile so they stay in
// rotation. The attempt budget is the total card count at call time;
// once it is spent the next draw is presented unfiltered rather than
// stalling the session on an all-ineligible deck.
func (d *Deck) PresentNextCard() (string, bool) {
	if d.current != "" {
		log.Printf("[deck] present requested while %s is unresolved", d.current)
		return "", false
	}

	budget := len(d.draw) + len(d.discard)
	for i := 0; i < budget; i++ {
		id, ok := d.drawOne()
		if !ok {
			return "", false
		}
		if d.IsEligible(d.catalog.ByID[id]) {
			d.current = id
			bus.Publish(d.bus, CardPresented{CardID: id})
			return id, true
		}
		d.draw = append(d.draw, id)
	}

	id, ok := d.drawOne()
	if !ok {
		return "", false
	}
	log.Printf("[deck] no eligible card in %d attempts, presenting %s unfiltered", budget, id)
	d.current = id
	bus.Publish(d.bus, CardPresented{CardID: id, Forced: true})
	return id, true
}

// IsEligible reports whether every stated requirement of the card
// holds right now. Absent requirements are vacuously satisfied.
func (d *Deck) IsEligible(card *catalogs.Card) bool {
	r := card.Requirements
	if r == nil {
		return true
	}
	day := d.day()
	if r.MinDay != nil && day < *r.MinDay {
		return false
	}
	if r.MaxDay != nil && day > *r.MaxDay {
		return false
	}
	for k, min := range r.MinResources {
		if d.ledger.Get(k) < min {
			return false
		}
	}
	for k, max := range r.MaxResources {
		if d.ledger.Get(k) > max {
			return false
		}
	}
	for _, id := range r.RequiredCards {
		if !d.played[id] {
			return false
		}
	}
	for _, id := range r.BlockedByCards {
		if d.played[id] {
			return false
		}
	}
	if r.RequiredCharacter != "" && !d.roster.Present(r.RequiredCharacter) {
		return false
	}
	for id, min := range r.MinLoyalty {
		if !d.roster.Present(id) || d.roster.Loyalty(id) < min {
			return false
		}
	}
	return true
}

// MakeChoice resolves the current card with the given option: resource
// and loyalty effects are applied, consequence directives published,
// the card moves to the discard pile, and follow-ups are inserted at
// the front of the draw pile so they are considered next. Returns
// false, with no state change, when there is no current card or the
// index is out of range.
func (d *Deck) MakeChoice(optionIndex int) bool {
	if d.current == "" {
		log.Printf("[deck] choice with no card presented")
		return false
	}
	card := d.catalog.ByID[d.current]
	if optionIndex < 0 || optionIndex >= len(card.Options) {
		log.Printf("[deck] card %s: option %d out of range [0,%d)",
			card.ID, optionIndex, len(card.Options))
		return false
	}
	opt := card.Options[optionIndex]

	d.ledger.ModifyMany(opt.ResourceEffects)
	d.roster.ModifyLoyalties(opt.LoyaltyEffects)
	d.resolver.Apply(opt.Directives)

	d.discard = append(d.discard, d.current)
	d.played[d.current] = true
	if len(opt.FollowupIDs) > 0 {
		d.draw = append(append([]string{}, opt.FollowupIDs...), d.draw...)
	}

	resolved := d.current
	d.current = ""
	bus.Publish(d.bus, CardResolved{CardID: resolved, OptionIndex: optionIndex})
	return true
}

func (d *Deck) CurrentID() string { return d.current }
func (d *Deck) Played(id string) bool {
	return d.played[id]
}

func (d *Deck) DrawIDs() []string {
	out := make([]string, len(d.draw))
	copy(out, d.draw)
	return out
}

func (d *Deck) DiscardIDs() []string {
	out := make([]string, len(d.discard))
	copy(out, d.discard)
	return out
}

// PlayedIDs returns the resolved-card set in a stable order.
func (d *Deck) PlayedIDs() []string {
	out := make([]string, 0, len(d.played))
	for id := range d.played {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Restore replaces all pile state from a saved partition. Ids absent
// from the catalog are dropped with a log line so a save from older
// content still loads.
func (d *Deck) Restore(draw, discard []string, current string, played []string) {
	keep := func(ids []string) []string {
		out := ids[:0]
		for _, id := range ids {
			if _, ok := d.catalog.ByID[id]; !ok {
				log.Printf("[deck] restore: unknown card id %q dropped", id)
				continue
			}
			out = append(out, id)
		}
		return out
	}
	d.draw = keep(append([]string{}, draw...))
	d.discard = keep(append([]string{}, discard...))
	d.current = ""
	if current != "" {
		if _, ok := d.catalog.ByID[current]; ok {
			d.current = current
		} else {
			log.Printf("[deck] restore: unknown current card %q dropped", current)
		}
	}
	d.played = make(map[string]bool, len(played))
	for _, id := range played {
		d.played[id] = true
	}
}
