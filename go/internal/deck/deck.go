package deck

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCard is returned when a vote is not one of the deck's cards
var ErrInvalidCard = errors.New("card is not in the deck")

// Unsure is the card that carries no numeric value
const Unsure = "?"

// Half is the half-point card
const Half = "½"

// Deck is the ordered set of cards participants can vote with
type Deck struct {
	Name  string   `yaml:"name" json:"name"`
	Cards []string `yaml:"cards" json:"cards"`
}

// Default returns the fibonacci deck used when no deck file is configured
func Default() Deck {
	return Deck{
		Name:  "fibonacci",
		Cards: []string{"0", Half, "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", Unsure},
	}
}

// Load reads a deck from a YAML file
func Load(path string) (Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Deck{}, fmt.Errorf("failed to read deck file: %w", err)
	}

	var d Deck
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Deck{}, fmt.Errorf("failed to parse deck file: %w", err)
	}

	d.Cards = lo.Uniq(lo.FilterMap(d.Cards, func(card string, _ int) (string, bool) {
		card = strings.TrimSpace(card)
		return card, card != ""
	}))
	if len(d.Cards) == 0 {
		return Deck{}, fmt.Errorf("deck %q has no cards", path)
	}
	if d.Name == "" {
		d.Name = "custom"
	}

	return d, nil
}

// LoadOrDefault loads the deck at path, or the default deck when path is empty
func LoadOrDefault(path string) (Deck, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Contains reports whether card is in the deck
func (d Deck) Contains(card string) bool {
	return lo.Contains(d.Cards, card)
}

// Validate checks a vote. A nil vote withdraws the current one and is always valid.
func (d Deck) Validate(vote *string) error {
	if vote == nil {
		return nil
	}
	if !d.Contains(*vote) {
		return fmt.Errorf("%w: %q", ErrInvalidCard, *vote)
	}
	return nil
}
