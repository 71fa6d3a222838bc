package stats

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

func votes(vs ...any) []*string {
	out := make([]*string, 0, len(vs))
	for _, v := range vs {
		if v == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, lo.ToPtr(v.(string)))
	}
	return out
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		votes        []*string
		mode         *string
		average      *string
		distribution map[string]int
	}{
		{
			name:         "single vote and an abstention",
			votes:        votes("5", nil),
			mode:         lo.ToPtr("5"),
			average:      lo.ToPtr("5.0"),
			distribution: map[string]int{"5": 1},
		},
		{
			name:         "no votes",
			votes:        votes(nil, nil),
			distribution: map[string]int{},
		},
		{
			name:         "unsure only",
			votes:        votes("?", "?"),
			mode:         lo.ToPtr("?"),
			distribution: map[string]int{"?": 2},
		},
		{
			name:         "half card",
			votes:        votes("½", "1", "?"),
			mode:         lo.ToPtr("1"),
			average:      lo.ToPtr("0.8"),
			distribution: map[string]int{"½": 1, "1": 1, "?": 1},
		},
		{
			name:         "most frequent wins",
			votes:        votes("3", "8", "8", "13"),
			mode:         lo.ToPtr("8"),
			average:      lo.ToPtr("8.0"),
			distribution: map[string]int{"3": 1, "8": 2, "13": 1},
		},
		{
			name:         "tie goes to the lowest whole card",
			votes:        votes("13", "2", "2", "13"),
			mode:         lo.ToPtr("2"),
			average:      lo.ToPtr("7.5"),
			distribution: map[string]int{"13": 2, "2": 2},
		},
		{
			name:         "tie between two single votes",
			votes:        votes("8", "3"),
			mode:         lo.ToPtr("3"),
			average:      lo.ToPtr("5.5"),
			distribution: map[string]int{"8": 1, "3": 1},
		},
		{
			name:         "whole cards win ties over unsure",
			votes:        votes("?", "5"),
			mode:         lo.ToPtr("5"),
			average:      lo.ToPtr("5.0"),
			distribution: map[string]int{"?": 1, "5": 1},
		},
		{
			name:         "other cards keep first seen order in a tie",
			votes:        votes("XL", "½", "?"),
			mode:         lo.ToPtr("XL"),
			average:      lo.ToPtr("0.5"),
			distribution: map[string]int{"XL": 1, "½": 1, "?": 1},
		},
		{
			name:         "non numeric cards are skipped in the average",
			votes:        votes("XL", "3"),
			mode:         lo.ToPtr("3"),
			average:      lo.ToPtr("3.0"),
			distribution: map[string]int{"XL": 1, "3": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Calculate(tt.votes)
			require.Equal(t, tt.mode, res.Mode)
			require.Equal(t, tt.average, res.Average)
			require.Equal(t, tt.distribution, res.Distribution)
		})
	}
}

func TestForState(t *testing.T) {
	state := models.NewRoomState()
	state.Participants = []models.Participant{
		{ID: "u1", Name: "Alice", Vote: lo.ToPtr("5"), SeatIndex: models.SeatAt(0)},
		{ID: "u2", Name: "Bob", SeatIndex: models.SeatAt(1)},
	}

	res := ForState(state)
	require.Equal(t, "5", *res.Mode)
	require.Equal(t, "5.0", *res.Average)
	require.Equal(t, 1, res.Voters)
}
