package engine

import "fmt"

// Code is a stable, machine-readable identifier for an engine error. The
// gateway's error-to-HTTP-status mapping switches on Code, never on the
// error's formatted string.
type Code string

const (
	CodeTableFull          Code = "TableFull"
	CodeAlreadySeated      Code = "AlreadySeated"
	CodeInsufficientBuyIn  Code = "InsufficientBuyIn"
	CodeInHandCannotLeave  Code = "InHandCannotLeave"
	CodeNotSeated          Code = "NotSeated"
	CodeNotBetweenHands    Code = "NotBetweenHands"
	CodeCannotStartHand    Code = "CannotStartHand"
	CodeNotYourTurn        Code = "NotYourTurn"
	CodeNotActive          Code = "NotActive"
	CodeWrongPhase         Code = "WrongPhase"
	CodeBetToMatch         Code = "BetToMatch"
	CodeBelowMinRaise      Code = "BelowMinRaise"
	CodeInsufficientChips  Code = "InsufficientChips"
	CodeUnknownAction      Code = "UnknownAction"
	CodeDeckExhausted      Code = "DeckExhausted"
	CodePotMismatch        Code = "PotMismatch"
)

// Error is the engine's single error type: every precondition failure is
// one of these, carrying a stable Code alongside a human-readable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode extracts the Code of an engine error, or "" if err is not one.
func ErrorCode(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
