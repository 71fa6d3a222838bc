package room

import (
	"github.com/samber/lo"

	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Target says who receives the result of an applied event
type Target int

const (
	// TargetNone delivers nothing
	TargetNone Target = iota
	// TargetSyncAll sends the full state to every subscriber, sender included
	TargetSyncAll
	// TargetSyncAllExceptSender sends the full state to everyone but the sender
	TargetSyncAllExceptSender
	// TargetDeltaAllExceptSender forwards the event itself to everyone but the sender
	TargetDeltaAllExceptSender
	// TargetSyncToSender sends the full state to the sender only
	TargetSyncToSender
)

func (t Target) String() string {
	switch t {
	case TargetNone:
		return "none"
	case TargetSyncAll:
		return "sync_all"
	case TargetSyncAllExceptSender:
		return "sync_all_except_sender"
	case TargetDeltaAllExceptSender:
		return "delta_all_except_sender"
	case TargetSyncToSender:
		return "sync_to_sender"
	default:
		return "unknown"
	}
}

// Outcome is the result of applying one event
type Outcome struct {
	State  models.RoomState
	Target Target
	// Delta is the event to forward for TargetDeltaAllExceptSender. It may differ
	// from the submitted event, e.g. a rename carries the sender's current seat.
	Delta events.Event
}

// Apply computes the next room state for an event and who must hear about it.
// The input state is never modified.
func Apply(state models.RoomState, ev events.Event) Outcome {
	next := state.Clone()
	out := Outcome{State: next, Target: TargetDeltaAllExceptSender, Delta: ev}

	switch e := ev.(type) {
	case events.Join:
		out.State = join(next, e)
		out.Target = TargetSyncAll
		out.Delta = nil

	case events.MoveToObservers:
		update(next, e.UserID, func(p *models.Participant) {
			p.SeatIndex = models.NoSeat()
			p.Vote = nil
		})

	case events.Leave:
		out.Delta = nil
		if !e.Permanent {
			out.Target = TargetNone
			break
		}
		out.State.Participants = lo.Reject(next.Participants, func(p models.Participant, _ int) bool {
			return p.ID == e.UserID
		})
		out.Target = TargetSyncAllExceptSender

	case events.Vote:
		update(next, e.UserID, func(p *models.Participant) {
			p.Vote = nil
			if e.Vote != nil {
				p.Vote = lo.ToPtr(*e.Vote)
			}
		})

	case events.Reveal:
		out.State.Revealed = e.Revealed

	case events.Reset:
		out.State.Revealed = false
		for i := range next.Participants {
			next.Participants[i].Vote = nil
		}

	case events.RequestState:
		out.Target = TargetSyncToSender
		out.Delta = nil

	case events.ChangeName:
		update(next, e.UserID, func(p *models.Participant) {
			p.Name = e.Username
			e.SeatIndex = p.SeatIndex
		})
		out.Delta = e

	case events.Unknown:
		// forwarded untouched

	default:
		// every sealed kind is handled above
	}

	return out
}

func join(state models.RoomState, e events.Join) models.RoomState {
	if i := state.Find(e.UserID); i >= 0 {
		state.Participants[i].Name = e.Username
		if e.SeatIndex != nil {
			state.Participants[i].SeatIndex = *e.SeatIndex
		}
		return state
	}

	p := models.Participant{ID: e.UserID, Name: e.Username}
	if e.SeatIndex != nil {
		p.SeatIndex = *e.SeatIndex
	}
	state.Participants = append(state.Participants, p)
	return state
}

// update runs fn on the participant with the given id, if present
func update(state models.RoomState, id string, fn func(p *models.Participant)) {
	if i := state.Find(id); i >= 0 {
		fn(&state.Participants[i])
	}
}
