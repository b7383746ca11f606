// Package consequence interprets the string-encoded directives card
// options and random events carry ("namespace:key:value") and routes
// them to the ledger, the loyalty table, or the event bus. Strings are
// compiled into a tagged union at content-load time, so malformed
// content fails early and dispatch never re-parses.
package consequence

import (
	"fmt"
	"strconv"
	"strings"

	"execdisorder/internal/sim/resources"
)

type DirectiveKind int

const (
	// DirResource adjusts one resource gauge: "resource:<kind>:<delta>".
	DirResource DirectiveKind = iota + 1
	// DirLoyalty adjusts a character's loyalty: "character:<id>:<delta>".
	DirLoyalty
	// DirEvent publishes a named game event with no payload: "event:<name>".
	DirEvent
	// DirNews publishes a headline: "news:<text>" (text may contain colons).
	DirNews
)

type Directive struct {
	Kind DirectiveKind

	Resource      resources.Kind
	ResourceDelta float64

	CharacterID  string
	LoyaltyDelta int

	EventName string
	Headline  string

	raw string
}

// Raw returns the original directive string, for snapshots and logs.
func (d Directive) Raw() string { return d.raw }

// Parse compiles one directive string. It returns an error for an
// unknown namespace, a missing field, or an unparseable numeric field;
// callers treat that as a recoverable content error.
func Parse(s string) (Directive, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return Directive{}, fmt.Errorf("directive %q: want namespace:key[:value]", s)
	}

	switch strings.ToLower(parts[0]) {
	case "resource":
		if len(parts) < 3 {
			return Directive{}, fmt.Errorf("directive %q: missing delta", s)
		}
		kind, ok := resources.ParseKind(parts[1])
		if !ok {
			return Directive{}, fmt.Errorf("directive %q: unknown resource kind %q", s, parts[1])
		}
		delta, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return Directive{}, fmt.Errorf("directive %q: bad delta: %w", s, err)
		}
		return Directive{Kind: DirResource, Resource: kind, ResourceDelta: delta, raw: s}, nil

	case "character":
		if len(parts) < 3 {
			return Directive{}, fmt.Errorf("directive %q: missing loyalty delta", s)
		}
		delta, err := strconv.Atoi(parts[2])
		if err != nil {
			return Directive{}, fmt.Errorf("directive %q: bad loyalty delta: %w", s, err)
		}
		return Directive{Kind: DirLoyalty, CharacterID: parts[1], LoyaltyDelta: delta, raw: s}, nil

	case "event":
		if parts[1] == "" {
			return Directive{}, fmt.Errorf("directive %q: empty event name", s)
		}
		return Directive{Kind: DirEvent, EventName: parts[1], raw: s}, nil

	case "news":
		// The headline may itself contain colons.
		text := strings.Join(parts[1:], ":")
		if text == "" {
			return Directive{}, fmt.Errorf("directive %q: empty headline", s)
		}
		return Directive{Kind: DirNews, Headline: text, raw: s}, nil
	}

	return Directive{}, fmt.Errorf("directive %q: unknown namespace %q", s, parts[0])
}

// ParseAll compiles a list of directive strings, collecting errors
// instead of stopping at the first.
func ParseAll(raw []string) ([]Directive, []error) {
	var ds []Directive
	var errs []error
	for _, s := range raw {
		d, err := Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ds = append(ds, d)
	}
	return ds, errs
}
