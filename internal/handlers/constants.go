package handlers

import "time"

// Operator PIN attempts allowed per client per window. Learner unlocks are never limited.
const (
	OperatorRateLimit  = 10
	OperatorRateWindow = time.Minute
)

const (
	// OperatorPinHeader carries the teacher PIN on operator routes
	OperatorPinHeader = "X-Operator-Pin"

	maxRequestBody = 1 << 20
	maxBackupBody  = 64 << 20

	ErrInvalidRequestBody = "Invalid request body"
	ErrUnauthorized       = "Please pick your name and enter your bead pattern"
	ErrPatternMismatch    = "That pattern didn't match. Try again!"
	ErrSomethingWentWrong = "Something went wrong, please reload."
	ErrTooManyRequests    = "Too many attempts, please wait a moment"
	ErrOperatorOnly       = "Teacher PIN required"
)
