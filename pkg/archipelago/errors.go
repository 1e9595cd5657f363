package archipelago

import (
	"errors"
	"fmt"
)

// Rule violation kinds. Every error returned by the engine wraps one of these,
// so callers can branch with errors.Is.
var (
	ErrInvalidMove            = errors.New("invalid move")
	ErrCardUnavailable        = errors.New("card unavailable")
	ErrProfessorTieUnresolved = errors.New("professor tie unresolved")
	ErrMarkerMovementInvalid  = errors.New("marker movement invalid")
	ErrEffectUnaffordable     = errors.New("effect unaffordable")
	ErrBagEmpty               = errors.New("bag empty")
)

// ErrGameOver is returned for any intent received after the match ended.
var ErrGameOver = fmt.Errorf("%w: game over", ErrInvalidMove)

// RuleError describes why an operation was rejected. Cause, when set, is the
// underlying failure and stays reachable through errors.Is and errors.As.
type RuleError struct {
	Op     string
	Err    error
	Detail string
	Cause  error
}

func (e *RuleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Detail)
}

func (e *RuleError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func ruleErr(op string, kind error, detail string) error {
	return &RuleError{Op: op, Err: kind, Detail: detail}
}
