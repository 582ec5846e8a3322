package service

import "errors"

var (
	// ErrStorage wraps a failed durable write. The in-memory change it
	// accompanies has already been applied.
	ErrStorage = errors.New("storage write failed")

	ErrQuestLocked        = errors.New("quest is locked")
	ErrNoActiveQuest      = errors.New("no active quest")
	ErrNoQuestion         = errors.New("no question in this phase")
	ErrNotAtClose         = errors.New("quest is not at its final phase")
	ErrAlreadyFinalized   = errors.New("quest already finalized")
	ErrIdentityMismatch   = errors.New("that pattern did not match")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrLearnerNotOpen     = errors.New("learner session not open")
	ErrUnsupportedVersion = errors.New("unsupported document version")
)
