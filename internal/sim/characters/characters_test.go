package characters

import (
	"testing"

	"execdisorder/internal/sim/bus"
)

func testRoster(t *testing.T) (*Roster, *bus.Bus) {
	t.Helper()
	b := bus.New()
	r := NewRoster([]Seed{
		{ID: "iguana", Name: "Rex Scaleston III", Title: "The Iguana King", Loyalty: 50},
		{ID: "dino", Name: "Donald J. Executive", Title: "The 45th", Loyalty: 75},
	}, b)
	return r, b
}

func TestModifyLoyalty_ClampAndEvents(t *testing.T) {
	r, b := testRoster(t)

	var loyal, hostile []string
	bus.Subscribe(b, func(e BecameLoyal) { loyal = append(loyal, e.ID) })
	bus.Subscribe(b, func(e BecameHostile) { hostile = append(hostile, e.ID) })

	r.ModifyLoyalty("dino", 10) // 85: crosses 80 upward
	if len(loyal) != 1 || loyal[0] != "dino" {
		t.Fatalf("loyal events %v", loyal)
	}
	r.ModifyLoyalty("dino", 100)
	if r.Loyalty("dino") != 100 {
		t.Fatalf("loyalty %d, want clamp at 100", r.Loyalty("dino"))
	}
	if len(loyal) != 1 {
		t.Fatalf("re-crossing not possible while above threshold, got %v", loyal)
	}

	r.ModifyLoyalty("iguana", -35) // 15: crosses 20 downward
	if len(hostile) != 1 || hostile[0] != "iguana" {
		t.Fatalf("hostile events %v", hostile)
	}
}

func TestModifyLoyalty_DepartureAtZero(t *testing.T) {
	r, b := testRoster(t)

	var left []string
	bus.Subscribe(b, func(e Left) { left = append(left, e.ID) })

	r.ModifyLoyalty("iguana", -50)
	if !r.Present("iguana") {
		t.Fatalf("character left above zero")
	}
	r.ModifyLoyalty("iguana", -1)
	if r.Present("iguana") {
		t.Fatalf("character still present at zero loyalty")
	}
	if len(left) != 1 || left[0] != "iguana" {
		t.Fatalf("left events %v", left)
	}

	// Further negative changes at the floor do not re-fire departure.
	r.ModifyLoyalty("iguana", -10)
	if len(left) != 1 {
		t.Fatalf("departure fired twice")
	}
}

func TestModifyLoyalty_UnknownIDSkipped(t *testing.T) {
	r, _ := testRoster(t)
	if r.ModifyLoyalty("nobody", 5) {
		t.Fatalf("unknown id accepted")
	}
}

func TestModifyLoyalties_Independent(t *testing.T) {
	r, _ := testRoster(t)
	r.ModifyLoyalties(map[string]int{"iguana": 10, "dino": -5, "ghost": 3})
	if r.Loyalty("iguana") != 60 || r.Loyalty("dino") != 70 {
		t.Fatalf("loyalties %v", r.Loyalties())
	}
}

func TestRestore(t *testing.T) {
	r, _ := testRoster(t)
	r.ModifyLoyalty("iguana", -50)

	r.Restore(map[string]int{"iguana": 5, "dino": 90}, []string{"iguana"})
	if r.Loyalty("iguana") != 5 || r.Present("iguana") {
		t.Fatalf("restore: loyalty=%d present=%v", r.Loyalty("iguana"), r.Present("iguana"))
	}
	if r.Loyalty("dino") != 90 || !r.Present("dino") {
		t.Fatalf("restore: dino loyalty=%d", r.Loyalty("dino"))
	}
	inactive := r.Inactive()
	if len(inactive) != 1 || inactive[0] != "iguana" {
		t.Fatalf("inactive %v", inactive)
	}
}
