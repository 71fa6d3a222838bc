package stats

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/mcdev12/planningpoker/go/internal/deck"
	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Result summarizes the votes of one round
type Result struct {
	Mode         *string        `json:"mode"`
	Average      *string        `json:"average"`
	Distribution map[string]int `json:"distribution"`
	Voters       int            `json:"voters"`
}

// Calculate computes the mode, average and distribution of a set of votes.
// Nil votes are ignored. Ties for the mode go to the lowest whole-number
// card; cards that are not whole numbers come after those in the order they
// were first cast.
// The average skips "?" and any card that is not a number, counts "½" as 0.5
// and is formatted with one decimal.
func Calculate(votes []*string) Result {
	cast := lo.FilterMap(votes, func(v *string, _ int) (string, bool) {
		if v == nil {
			return "", false
		}
		return *v, true
	})

	res := Result{
		Distribution: lo.CountValues(cast),
		Voters:       len(cast),
	}

	best := 0
	for _, card := range tieOrder(lo.Uniq(cast)) {
		if n := res.Distribution[card]; n > best {
			best = n
			res.Mode = lo.ToPtr(card)
		}
	}

	numeric := lo.FilterMap(cast, func(card string, _ int) (float64, bool) {
		return cardValue(card)
	})
	if len(numeric) > 0 {
		avg := lo.Sum(numeric) / float64(len(numeric))
		res.Average = lo.ToPtr(strconv.FormatFloat(avg, 'f', 1, 64))
	}

	return res
}

// ForState computes statistics over every participant's current vote
func ForState(state models.RoomState) Result {
	return Calculate(state.Votes())
}

// tieOrder puts whole-number cards first in ascending order and keeps the
// rest in first-seen order
func tieOrder(cards []string) []string {
	ordered := slices.Clone(cards)
	slices.SortStableFunc(ordered, func(a, b string) int {
		ai, aok := wholeCard(a)
		bi, bok := wholeCard(b)
		switch {
		case aok && bok:
			return cmp.Compare(ai, bi)
		case aok:
			return -1
		case bok:
			return 1
		}
		return 0
	})
	return ordered
}

// wholeCard parses cards written as a plain non-negative integer without
// leading zeros, such as "0" or "13"
func wholeCard(card string) (uint64, bool) {
	n, err := strconv.ParseUint(card, 10, 32)
	if err != nil || n == math.MaxUint32 || strconv.FormatUint(n, 10) != card {
		return 0, false
	}
	return n, true
}

func cardValue(card string) (float64, bool) {
	switch card {
	case deck.Unsure:
		return 0, false
	case deck.Half:
		return 0.5, true
	}
	v, err := strconv.ParseFloat(card, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
