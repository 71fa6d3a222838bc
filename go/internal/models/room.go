package models

// Participant is one user's identity within a room. The ID is generated by the
// client and survives reconnects.
type Participant struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Vote      *string `json:"vote"`
	SeatIndex Seat    `json:"seatIndex"`
}

// HasVoted reports whether the participant picked a card this round.
func (p Participant) HasVoted() bool {
	return p.Vote != nil
}

// RoomState is the authoritative, broadcastable state of a room.
type RoomState struct {
	Participants []Participant `json:"participants"`
	Revealed     bool          `json:"revealed"`
}

// NewRoomState returns an empty state with a non-nil participant list so it
// always encodes as an array.
func NewRoomState() RoomState {
	return RoomState{Participants: []Participant{}}
}

// Clone returns a deep copy that shares nothing mutable with the receiver.
func (s RoomState) Clone() RoomState {
	out := RoomState{
		Participants: make([]Participant, len(s.Participants)),
		Revealed:     s.Revealed,
	}
	for i, p := range s.Participants {
		if p.Vote != nil {
			v := *p.Vote
			p.Vote = &v
		}
		out.Participants[i] = p
	}
	return out
}

// Find returns the index of the participant with the given id, or -1.
func (s RoomState) Find(id string) int {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return i
		}
	}
	return -1
}

// Participant returns a copy of the participant with the given id.
func (s RoomState) Participant(id string) (Participant, bool) {
	i := s.Find(id)
	if i < 0 {
		return Participant{}, false
	}
	return s.Participants[i], true
}

// Votes returns every participant's vote in participant order.
func (s RoomState) Votes() []*string {
	votes := make([]*string, len(s.Participants))
	for i, p := range s.Participants {
		votes[i] = p.Vote
	}
	return votes
}
