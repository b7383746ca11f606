// Package catalogs loads the game's content data: decision cards,
// characters, and random events. Content ships as JSON validated
// against the schemas in schemas/; consequence strings are compiled to
// typed directives here, at load time, so malformed content surfaces
// before a session ever runs. Each catalog carries a digest so saves
// and logs can record exactly which content they ran against.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"execdisorder/internal/sim/consequence"
	"execdisorder/internal/sim/resources"
)

type Category string

const (
	CategoryNormal      Category = "normal"
	CategoryCrisis      Category = "crisis"
	CategoryScandal     Category = "scandal"
	CategoryOpportunity Category = "opportunity"
	CategoryCharacter   Category = "character"
	CategoryAbsurd      Category = "absurd"
	CategoryEndGame     Category = "end_game"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyElevated Urgency = "elevated"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyCritical Urgency = "critical"
)

// Card is immutable once loaded; the deck moves cards between piles
// but never mutates them.
type Card struct {
	ID          string
	Title       string
	Description string
	Category    Category
	Rarity      Rarity
	Urgency     Urgency

	// TimeLimitSec is advisory for crisis cards; the core does not
	// enforce it, the caller does.
	TimeLimitSec int

	CharacterID string

	Options      []Option
	Requirements *Requirements
}

type Option struct {
	Text            string
	ResourceEffects map[resources.Kind]float64
	LoyaltyEffects  map[string]int
	Directives      []consequence.Directive
	FollowupIDs     []string
}

type Requirements struct {
	MinDay *int
	MaxDay *int

	MinResources map[resources.Kind]float64
	MaxResources map[resources.Kind]float64

	RequiredCards  []string
	BlockedByCards []string

	RequiredCharacter string
	MinLoyalty        map[string]int
}

type CharacterDef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Archetype string `json:"archetype"`
	Loyalty   int    `json:"loyalty"`
}

// EventDef is a random event rolled at day boundaries.
type EventDef struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Weight          float64  `json:"weight"`
	ResourceEffects rawFXMap `json:"resource_effects"`
	Consequences    []string `json:"consequences"`

	Effects    map[resources.Kind]float64 `json:"-"`
	Directives []consequence.Directive    `json:"-"`
}

type CardCatalog struct {
	ByID   map[string]*Card
	Order  []string
	Digest string
}

type CharacterCatalog struct {
	Defs   []CharacterDef
	Digest string
}

type EventCatalog struct {
	Defs   []EventDef
	Digest string
}

type Catalogs struct {
	Cards      CardCatalog
	Characters CharacterCatalog
	Events     EventCatalog

	// Warnings counts content entries dropped during compilation
	// (malformed directives, unknown resource kinds, dangling ids).
	Warnings int
}

// Load reads cards.json, characters.json, and events.json from
// configDir, validating each against the matching schema in schemaDir
// before decoding.
func Load(configDir, schemaDir string) (*Catalogs, error) {
	c := &Catalogs{}

	if err := c.loadCards(configDir, schemaDir); err != nil {
		return nil, err
	}
	if err := c.loadCharacters(configDir, schemaDir); err != nil {
		return nil, err
	}
	if err := c.loadEvents(configDir, schemaDir); err != nil {
		return nil, err
	}
	return c, nil
}

// rawFXMap decodes the content-data spelling of a resource-effect map.
type rawFXMap map[string]float64

func (m rawFXMap) compile(where string, warnings *int) map[resources.Kind]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[resources.Kind]float64, len(m))
	for name, delta := range m {
		kind, ok := resources.ParseKind(name)
		if !ok {
			log.Printf("[catalogs] %s: unknown resource kind %q skipped", where, name)
			*warnings++
			continue
		}
		out[kind] = delta
	}
	return out
}

type rawOption struct {
	Text            string         `json:"text"`
	ResourceEffects rawFXMap       `json:"resource_effects"`
	LoyaltyEffects  map[string]int `json:"loyalty_effects"`
	Consequences    []string       `json:"consequences"`
	FollowupCardIDs []string       `json:"followup_card_ids"`
}

type rawRequirements struct {
	MinDay            *int           `json:"min_day"`
	MaxDay            *int           `json:"max_day"`
	MinResources      rawFXMap       `json:"min_resources"`
	MaxResources      rawFXMap       `json:"max_resources"`
	RequiredCards     []string       `json:"required_cards"`
	BlockedByCards    []string       `json:"blocked_by_cards"`
	RequiredCharacter string         `json:"required_character"`
	MinLoyalty        map[string]int `json:"min_loyalty"`
}

type rawCard struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Category     Category         `json:"category"`
	Rarity       Rarity           `json:"rarity"`
	Urgency      Urgency          `json:"urgency"`
	TimeLimitSec int              `json:"time_limit_sec"`
	CharacterID  string           `json:"character_id"`
	Options      []rawOption      `json:"options"`
	Requirements *rawRequirements `json:"requirements"`
}

func (c *Catalogs) loadCards(configDir, schemaDir string) error {
	raw, digest, err := readValidated(
		filepath.Join(configDir, "cards.json"),
		filepath.Join(schemaDir, "cards.schema.json"),
	)
	if err != nil {
		return err
	}

	var defs []rawCard
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("cards.json: %w", err)
	}

	cat := CardCatalog{ByID: make(map[string]*Card, len(defs)), Digest: digest}
	for _, d := range defs {
		if _, dup := cat.ByID[d.ID]; dup {
			return fmt.Errorf("cards.json: duplicate card id %q", d.ID)
		}
		if len(d.Options) == 0 {
			return fmt.Errorf("cards.json: card %q has no options", d.ID)
		}

		card := &Card{
			ID:           d.ID,
			Title:        d.Title,
			Description:  d.Description,
			Category:     d.Category,
			Rarity:       d.Rarity,
			Urgency:      d.Urgency,
			TimeLimitSec: d.TimeLimitSec,
			CharacterID:  d.CharacterID,
		}
		for i, o := range d.Options {
			where := fmt.Sprintf("card %s option %d", d.ID, i)
			ds, errs := consequence.ParseAll(o.Consequences)
			for _, e := range errs {
				log.Printf("[catalogs] %s: %v", where, e)
				c.Warnings++
			}
			card.Options = append(card.Options, Option{
				Text:            o.Text,
				ResourceEffects: o.ResourceEffects.compile(where, &c.Warnings),
				LoyaltyEffects:  o.LoyaltyEffects,
				Directives:      ds,
				FollowupIDs:     o.FollowupCardIDs,
			})
		}
		if d.Requirements != nil {
			r := d.Requirements
			card.Requirements = &Requirements{
				MinDay:            r.MinDay,
				MaxDay:            r.MaxDay,
				MinResources:      r.MinResources.compile("card "+d.ID+" min_resources", &c.Warnings),
				MaxResources:      r.MaxResources.compile("card "+d.ID+" max_resources", &c.Warnings),
				RequiredCards:     r.RequiredCards,
				BlockedByCards:    r.BlockedByCards,
				RequiredCharacter: r.RequiredCharacter,
				MinLoyalty:        r.MinLoyalty,
			}
		}

		cat.ByID[d.ID] = card
		cat.Order = append(cat.Order, d.ID)
	}

	// Follow-up references must resolve; a dangling id would fabricate
	// a card at play time.
	for _, id := range cat.Order {
		card := cat.ByID[id]
		for oi := range card.Options {
			kept := card.Options[oi].FollowupIDs[:0]
			for _, fid := range card.Options[oi].FollowupIDs {
				if _, ok := cat.ByID[fid]; !ok {
					log.Printf("[catalogs] card %s: dangling follow-up id %q dropped", id, fid)
					c.Warnings++
					continue
				}
				kept = append(kept, fid)
			}
			card.Options[oi].FollowupIDs = kept
		}
	}

	c.Cards = cat
	return nil
}

func (c *Catalogs) loadCharacters(configDir, schemaDir string) error {
	raw, digest, err := readValidated(
		filepath.Join(configDir, "characters.json"),
		filepath.Join(schemaDir, "characters.schema.json"),
	)
	if err != nil {
		return err
	}
	var defs []CharacterDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("characters.json: %w", err)
	}
	c.Characters = CharacterCatalog{Defs: defs, Digest: digest}
	return nil
}

func (c *Catalogs) loadEvents(configDir, schemaDir string) error {
	raw, digest, err := readValidated(
		filepath.Join(configDir, "events.json"),
		filepath.Join(schemaDir, "events.schema.json"),
	)
	if err != nil {
		return err
	}
	var defs []EventDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("events.json: %w", err)
	}
	for i := range defs {
		where := "event " + defs[i].ID
		defs[i].Effects = defs[i].ResourceEffects.compile(where, &c.Warnings)
		ds, errs := consequence.ParseAll(defs[i].Consequences)
		for _, e := range errs {
			log.Printf("[catalogs] %s: %v", where, e)
			c.Warnings++
		}
		defs[i].Directives = ds
	}
	c.Events = EventCatalog{Defs: defs, Digest: digest}
	return nil
}

// readValidated loads a content file, checks it against its schema,
// and returns the raw bytes plus their sha256 digest.
func readValidated(path, schemaPath string) ([]byte, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return nil, "", fmt.Errorf("compile %s: %w", filepath.Base(schemaPath), err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	sum := sha256.Sum256(raw)
	return raw, hex.EncodeToString(sum[:8]), nil
}
