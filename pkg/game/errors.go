package game

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected engine operation.
type ErrorKind string

const (
	KindAlreadyStarted    ErrorKind = "already_started"
	KindNotStarted        ErrorKind = "not_started"
	KindGameOver          ErrorKind = "game_over"
	KindRoomFull          ErrorKind = "room_full"
	KindDuplicateSeat     ErrorKind = "duplicate_seat"
	KindUnknownSeat       ErrorKind = "unknown_seat"
	KindNotOwner          ErrorKind = "not_owner"
	KindSeatCount         ErrorKind = "seat_count"
	KindWrongPhase        ErrorKind = "wrong_phase"
	KindWrongRole         ErrorKind = "wrong_role"
	KindDeadActor         ErrorKind = "dead_actor"
	KindDeadTarget        ErrorKind = "dead_target"
	KindMissingTarget     ErrorKind = "missing_target"
	KindRepeatGuard       ErrorKind = "repeat_guard_target"
	KindRepeatInspect     ErrorKind = "repeat_inspect_target"
	KindAntidoteUsed      ErrorKind = "antidote_used"
	KindPoisonUsed        ErrorKind = "poison_used"
	KindNoAttackTarget    ErrorKind = "no_attack_target"
	KindSelfSaveForbidden ErrorKind = "self_save_forbidden"
	KindAlreadyProtected  ErrorKind = "already_protected"
	KindCannotVote        ErrorKind = "cannot_vote"
	KindNoRetaliation     ErrorKind = "no_retaliation"
	KindInvalidSetup      ErrorKind = "invalid_setup"
)

// ValidationError is returned when an operation violates a game rule.
// It is never retried by the engine.
type ValidationError struct {
	// Kind identifies the violated rule
	Kind ErrorKind

	// Actor is the seat that attempted the operation (if any)
	Actor string

	// Message is a human-readable description
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Actor != "" {
		return fmt.Sprintf("invalid action by %q (%s): %s", e.Actor, e.Kind, e.Message)
	}
	return fmt.Sprintf("invalid action (%s): %s", e.Kind, e.Message)
}

// Is matches another *ValidationError with the same Kind, so callers can
// write errors.Is(err, &ValidationError{Kind: KindRoomFull}).
func (e *ValidationError) Is(target error) bool {
	var other *ValidationError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func invalid(kind ErrorKind, actor, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Actor: actor, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind of err, or "" if err is not a ValidationError.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// SaveRefused reports whether err rejected a witch's antidote rather than
// her poison.
func SaveRefused(err error) bool {
	switch KindOf(err) {
	case KindAntidoteUsed, KindNoAttackTarget, KindSelfSaveForbidden, KindAlreadyProtected:
		return true
	}
	return false
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
