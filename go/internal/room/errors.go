package room

import "errors"

var (
	// ErrRoomNotFound is returned when an event targets a room the registry does not hold
	ErrRoomNotFound = errors.New("room not found")
	// ErrMissingParticipant is returned when a subscription has no participant id
	ErrMissingParticipant = errors.New("participant id is required")
	// ErrSubscriberClosed is returned by a Subscriber whose transport has gone away
	ErrSubscriberClosed = errors.New("subscriber closed")
	// ErrRoomClosed is returned by a room that was reaped after it was looked up
	ErrRoomClosed = errors.New("room closed")
	// ErrRegistryClosed is returned after Shutdown
	ErrRegistryClosed = errors.New("registry is shut down")
)
