package deck

import (
	"math/rand"
	"sort"
	"testing"

	"execdisorder/internal/sim/bus"
	"execdisorder/internal/sim/catalogs"
	"execdisorder/internal/sim/characters"
	"execdisorder/internal/sim/consequence"
	"execdisorder/internal/sim/resources"
)

func intp(n int) *int { return &n }

func makeCatalog(cards ...*catalogs.Card) *catalogs.CardCatalog {
	cat := &catalogs.CardCatalog{ByID: make(map[string]*catalogs.Card)}
	for _, c := range cards {
		cat.ByID[c.ID] = c
		cat.Order = append(cat.Order, c.ID)
	}
	return cat
}

func plainCard(id string) *catalogs.Card {
	return &catalogs.Card{ID: id, Options: []catalogs.Option{{Text: "ok"}}}
}

type fixture struct {
	deck   *Deck
	bus    *bus.Bus
	ledger *resources.Ledger
	roster *characters.Roster
	day    int
}

func newFixture(t *testing.T, seed int64, cards ...*catalogs.Card) *fixture {
	t.Helper()
	f := &fixture{bus: bus.New(), day: 1}
	f.ledger = resources.NewLedger(resources.Config{}, f.bus)
	f.roster = characters.NewRoster([]characters.Seed{
		{ID: "iguana_king", Name: "The Iguana King", Loyalty: 50},
	}, f.bus)
	res := consequence.NewResolver(f.ledger, f.roster, f.bus)
	f.deck = New(makeCatalog(cards...), f.ledger, f.roster, res, f.bus,
		rand.New(rand.NewSource(seed)), func() int { return f.day })
	return f
}

func TestPresentNextCard_SkipsIneligible(t *testing.T) {
	gated := plainCard("gated")
	gated.Requirements = &catalogs.Requirements{MinDay: intp(5)}
	f := newFixture(t, 1, gated, plainCard("open"))

	id, ok := f.deck.PresentNextCard()
	if !ok || id != "open" {
		t.Fatalf("presented %q ok=%v, want open", id, ok)
	}
	draw := f.deck.DrawIDs()
	if len(draw) != 1 || draw[0] != "gated" {
		t.Fatalf("gated card should stay in rotation, draw = %v", draw)
	}
}

func TestPresentNextCard_ForcedWhenNothingEligible(t *testing.T) {
	a := plainCard("a")
	a.Requirements = &catalogs.Requirements{MinDay: intp(5)}
	b := plainCard("b")
	b.Requirements = &catalogs.Requirements{MinDay: intp(5)}
	f := newFixture(t, 1, a, b)

	var presented []CardPresented
	bus.Subscribe(f.bus, func(e CardPresented) { presented = append(presented, e) })

	id, ok := f.deck.PresentNextCard()
	if !ok || id == "" {
		t.Fatalf("all-ineligible deck must still present, got ok=%v", ok)
	}
	if len(presented) != 1 || !presented[0].Forced {
		t.Fatalf("events = %+v, want one forced presentation", presented)
	}
}

func TestPresentNextCard_BlockedWhileUnresolved(t *testing.T) {
	f := newFixture(t, 1, plainCard("a"), plainCard("b"))
	if _, ok := f.deck.PresentNextCard(); !ok {
		t.Fatalf("first present failed")
	}
	if id, ok := f.deck.PresentNextCard(); ok {
		t.Fatalf("second present succeeded with %q while first unresolved", id)
	}
}

func TestDrawReshufflesDiscard(t *testing.T) {
	f := newFixture(t, 1, plainCard("only"))
	var shuffles int
	bus.Subscribe(f.bus, func(DeckShuffled) { shuffles++ })

	for cycle := 0; cycle < 3; cycle++ {
		id, ok := f.deck.PresentNextCard()
		if !ok || id != "only" {
			t.Fatalf("cycle %d: presented %q ok=%v", cycle, id, ok)
		}
		if !f.deck.MakeChoice(0) {
			t.Fatalf("cycle %d: choice failed", cycle)
		}
	}
	// The discard is reshuffled into the draw pile on cycles 1 and 2.
	if shuffles != 2 {
		t.Fatalf("shuffles = %d, want 2", shuffles)
	}
}

func TestPresentNextCard_DeckEmpty(t *testing.T) {
	f := newFixture(t, 1, plainCard("a"))
	f.deck.Restore(nil, nil, "", nil)

	var empty int
	bus.Subscribe(f.bus, func(DeckEmpty) { empty++ })
	if id, ok := f.deck.PresentNextCard(); ok {
		t.Fatalf("present on empty deck returned %q", id)
	}
	if empty != 1 {
		t.Fatalf("DeckEmpty notifications = %d, want 1", empty)
	}
}

func TestMakeChoice_AppliesEffectsAndFollowups(t *testing.T) {
	news, err := consequence.Parse("news:Submarine Joins Rideshare Economy")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := &catalogs.Card{ID: "root", Options: []catalogs.Option{{
		Text:            "deny everything",
		ResourceEffects: map[resources.Kind]float64{resources.Popularity: -10, resources.Stability: 5},
		LoyaltyEffects:  map[string]int{"iguana_king": 15},
		Directives:      []consequence.Directive{news},
		FollowupIDs:     []string{"next"},
	}}}
	f := newFixture(t, 1, root, plainCard("next"))
	f.deck.Restore([]string{"root", "next"}, nil, "", nil)

	var headlines []string
	bus.Subscribe(f.bus, func(e consequence.NewsHeadline) { headlines = append(headlines, e.Text) })
	var resolved []CardResolved
	bus.Subscribe(f.bus, func(e CardResolved) { resolved = append(resolved, e) })

	if id, _ := f.deck.PresentNextCard(); id != "root" {
		t.Fatalf("presented %q, want root", id)
	}
	if !f.deck.MakeChoice(0) {
		t.Fatalf("choice failed")
	}

	if got := f.ledger.Get(resources.Popularity); got != 40 {
		t.Fatalf("popularity = %v, want 40", got)
	}
	if got := f.ledger.Get(resources.Stability); got != 55 {
		t.Fatalf("stability = %v, want 55", got)
	}
	if got := f.roster.Loyalty("iguana_king"); got != 65 {
		t.Fatalf("loyalty = %d, want 65", got)
	}
	if len(headlines) != 1 || headlines[0] != "Submarine Joins Rideshare Economy" {
		t.Fatalf("headlines = %v", headlines)
	}
	if len(resolved) != 1 || resolved[0].CardID != "root" || resolved[0].OptionIndex != 0 {
		t.Fatalf("resolved = %+v", resolved)
	}
	// Follow-up goes to the front of the draw pile.
	if draw := f.deck.DrawIDs(); len(draw) != 2 || draw[0] != "next" {
		t.Fatalf("draw after follow-up insert = %v", draw)
	}
	if !f.deck.Played("root") {
		t.Fatalf("root not marked played")
	}
}

func TestMakeChoice_Failures(t *testing.T) {
	f := newFixture(t, 1, plainCard("a"))
	if f.deck.MakeChoice(0) {
		t.Fatalf("choice with no current card succeeded")
	}
	if _, ok := f.deck.PresentNextCard(); !ok {
		t.Fatalf("present failed")
	}
	if f.deck.MakeChoice(1) || f.deck.MakeChoice(-1) {
		t.Fatalf("out-of-range option accepted")
	}
	if f.deck.CurrentID() != "a" {
		t.Fatalf("failed choice must not consume the card")
	}
}

func TestIsEligible(t *testing.T) {
	f := newFixture(t, 1, plainCard("seen"))
	f.day = 10
	f.ledger.Set(resources.Popularity, 25)
	f.deck.played["seen"] = true

	cases := []struct {
		name string
		req  *catalogs.Requirements
		want bool
	}{
		{"no requirements", nil, true},
		{"min day met", &catalogs.Requirements{MinDay: intp(10)}, true},
		{"min day unmet", &catalogs.Requirements{MinDay: intp(11)}, false},
		{"max day unmet", &catalogs.Requirements{MaxDay: intp(9)}, false},
		{"min resource unmet",
			&catalogs.Requirements{MinResources: map[resources.Kind]float64{resources.Popularity: 30}}, false},
		{"max resource met",
			&catalogs.Requirements{MaxResources: map[resources.Kind]float64{resources.Popularity: 30}}, true},
		{"required card played", &catalogs.Requirements{RequiredCards: []string{"seen"}}, true},
		{"required card missing", &catalogs.Requirements{RequiredCards: []string{"unseen"}}, false},
		{"blocked by played card", &catalogs.Requirements{BlockedByCards: []string{"seen"}}, false},
		{"character present", &catalogs.Requirements{RequiredCharacter: "iguana_king"}, true},
		{"character absent", &catalogs.Requirements{RequiredCharacter: "ghost"}, false},
		{"loyalty met", &catalogs.Requirements{MinLoyalty: map[string]int{"iguana_king": 50}}, true},
		{"loyalty unmet", &catalogs.Requirements{MinLoyalty: map[string]int{"iguana_king": 51}}, false},
	}
	for _, tc := range cases {
		card := &catalogs.Card{ID: "probe", Options: []catalogs.Option{{Text: "x"}}, Requirements: tc.req}
		if got := f.deck.IsEligible(card); got != tc.want {
			t.Errorf("%s: eligible = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// The union of draw, discard, and current must always equal the card
// set in play, with no duplicates inside any pile.
func TestPartitionInvariant(t *testing.T) {
	cards := []*catalogs.Card{
		plainCard("a"), plainCard("b"), plainCard("c"), plainCard("d"),
	}
	cards[0].Options[0].FollowupIDs = []string{"c"}
	f := newFixture(t, 42, cards...)

	want := []string{"a", "b", "c", "d"}
	check := func(step int) {
		var all []string
		all = append(all, f.deck.DrawIDs()...)
		all = append(all, f.deck.DiscardIDs()...)
		if cur := f.deck.CurrentID(); cur != "" {
			all = append(all, cur)
		}
		sort.Strings(all)
		// "c" may legitimately appear twice once injected as a
		// follow-up while its original copy sits in another pile.
		seen := map[string]int{}
		for _, id := range all {
			seen[id]++
		}
		for _, id := range want {
			if seen[id] == 0 {
				t.Fatalf("step %d: card %s lost, piles = %v", step, id, all)
			}
		}
	}

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 40; step++ {
		if _, ok := f.deck.PresentNextCard(); !ok {
			t.Fatalf("step %d: present failed", step)
		}
		check(step)
		if rng.Intn(4) == 0 {
			f.deck.MakeChoice(99) // rejected, card stays current
		}
		if !f.deck.MakeChoice(0) {
			t.Fatalf("step %d: choice failed", step)
		}
		check(step)
	}
}

func TestRestore_DropsUnknownIDs(t *testing.T) {
	f := newFixture(t, 1, plainCard("a"), plainCard("b"))
	f.deck.Restore([]string{"a", "zombie"}, []string{"b"}, "phantom", []string{"a"})

	if draw := f.deck.DrawIDs(); len(draw) != 1 || draw[0] != "a" {
		t.Fatalf("draw = %v", draw)
	}
	if disc := f.deck.DiscardIDs(); len(disc) != 1 || disc[0] != "b" {
		t.Fatalf("discard = %v", disc)
	}
	if cur := f.deck.CurrentID(); cur != "" {
		t.Fatalf("current = %q, want empty", cur)
	}
	if !f.deck.Played("a") || f.deck.Played("b") {
		t.Fatalf("played set wrong: %v", f.deck.PlayedIDs())
	}
}
