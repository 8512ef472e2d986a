package domain

import "fmt"

// Stage is a checkpoint of the verification gate.
type Stage string

// Gate stages in strict order. StageNone is never stored.
const (
	StageNone          Stage = ""
	StageEmailVerified Stage = "email_verified"
	StagePhotoCaptured Stage = "photo_captured"
	StageOTPVerified   Stage = "otp_verified"
	StageLobbyReady    Stage = "lobby_ready"
	StageStarted       Stage = "started"
)

var stageOrder = []Stage{StageNone, StageEmailVerified, StagePhotoCaptured, StageOTPVerified, StageLobbyReady, StageStarted}

// Rank returns the position of s in the gate, or -1 for unknown stages.
func (s Stage) Rank() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a stored stage.
func (s Stage) Valid() bool { return s.Rank() > 0 }

// Next returns the immediate successor of s.
func (s Stage) Next() (Stage, bool) {
	r := s.Rank()
	if r < 0 || r+1 >= len(stageOrder) {
		return StageNone, false
	}
	return stageOrder[r+1], true
}

// AtLeast reports whether s is at or past other.
func (s Stage) AtLeast(other Stage) bool {
	return s.Rank() >= 0 && s.Rank() >= other.Rank()
}

// ParseStage rejects unknown stage names.
func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	if !s.Valid() {
		return StageNone, FieldError("stage", fmt.Sprintf("unknown stage %q", v))
	}
	return s, nil
}

// StageViolationError reports an out-of-order transition. The stored session is left untouched.
type StageViolationError struct {
	Current   Stage
	Requested Stage
	Expected  Stage
}

func (e *StageViolationError) Error() string {
	if e.Expected == StageNone {
		return fmt.Sprintf("stage violation: session at %q is final, requested %q", e.Current, e.Requested)
	}
	return fmt.Sprintf("stage violation: session at %q expects %q, requested %q", e.Current, e.Expected, e.Requested)
}

// Unwrap lets errors.Is match ErrStageViolation.
func (e *StageViolationError) Unwrap() error { return ErrStageViolation }

// Details returns the expected-vs-actual payload for error responses.
func (e *StageViolationError) Details() map[string]any {
	return map[string]any{
		"current":   string(e.Current),
		"expected":  string(e.Expected),
		"requested": string(e.Requested),
	}
}

// CheckTransition validates that target is the immediate successor of current.
func CheckTransition(current, target Stage) error {
	next, ok := current.Next()
	if !ok || next != target {
		return &StageViolationError{Current: current, Requested: target, Expected: next}
	}
	return nil
}
