package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one of these so callers
// can match either the precise error or its kind with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrCapacity     = errors.New("capacity")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

var (
	// ErrGameNotFound is returned when no game exists for the given id.
	ErrGameNotFound = fmt.Errorf("%w: game not found", ErrNotFound)
	// ErrParticipantNotFound is returned when a user acts on a game they never joined.
	ErrParticipantNotFound = fmt.Errorf("%w: participant not found in game", ErrNotFound)

	ErrAlreadyStarted    = fmt.Errorf("%w: game already started", ErrInvalidState)
	ErrNotStarted        = fmt.Errorf("%w: game has not started", ErrInvalidState)
	ErrNotTopicSelection = fmt.Errorf("%w: game is not waiting for a topic", ErrInvalidState)
	ErrRoundNotActive    = fmt.Errorf("%w: round is not accepting answers", ErrInvalidState)

	ErrNotCreator  = fmt.Errorf("%w: only the creator can start the game", ErrForbidden)
	ErrNotYourTurn = fmt.Errorf("%w: another participant chooses this topic", ErrForbidden)

	ErrGameFull         = fmt.Errorf("%w: game is full", ErrCapacity)
	ErrNotEnoughPlayers = fmt.Errorf("%w: not enough participants to start", ErrCapacity)

	ErrAlreadyJoined      = fmt.Errorf("%w: participant already joined", ErrConflict)
	ErrAlreadyAnswered    = fmt.Errorf("%w: participant already answered this round", ErrConflict)
	ErrTopicAlreadyChosen = fmt.Errorf("%w: topic already chosen for this round", ErrConflict)
	// ErrVersionConflict is returned by stores when optimistic retries are exhausted.
	ErrVersionConflict = fmt.Errorf("%w: game was modified concurrently", ErrConflict)

	ErrInvalidQuestion = fmt.Errorf("%w: malformed question", ErrInvalidInput)
)
