package pipeline

import (
	"errors"
	"fmt"
)

// Failure kinds. A *StageError matches exactly one of them via errors.Is.
var (
	ErrDevice        = errors.New("audio device error")
	ErrTranscription = errors.New("transcription error")
	ErrDialogue      = errors.New("dialogue error")
	ErrSynthesis     = errors.New("synthesis error")
	ErrPlayback      = errors.New("playback error")
)

// ErrNoSpeech signals that a turn was abandoned because nobody spoke. It is
// not a failure.
var ErrNoSpeech = errors.New("no speech detected")

// Stage names a pipeline stage.
type Stage string

const (
	StageCapture       Stage = "capture"
	StageTranscription Stage = "transcription"
	StageDialogue      Stage = "dialogue"
	StageSynthesis     Stage = "synthesis"
	StagePlayback      Stage = "playback"
	StageAvatar        Stage = "avatar"
)

// StageError reports a failure of one stage while handling one turn.
type StageError struct {
	Stage Stage
	Kind  error
	Turn  int64
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (turn %d): %v", e.Stage, e.Turn, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the failure kind so callers can write errors.Is(err, ErrDialogue).
func (e *StageError) Is(target error) bool {
	return target == e.Kind
}

// Fatal reports whether the session cannot continue after this error.
func (e *StageError) Fatal() bool {
	return e.Kind == ErrDevice
}

// UserMessage is a short description safe to show to the candidate.
func (e *StageError) UserMessage() string {
	switch e.Kind {
	case ErrDevice:
		return "The audio device stopped working, so the interview has ended."
	case ErrTranscription:
		return "Sorry, I couldn't understand that. Could you say it again?"
	case ErrDialogue:
		return "Sorry, I couldn't come up with a reply. Please continue."
	case ErrSynthesis:
		return "Part of my reply could not be spoken."
	case ErrPlayback:
		return "Part of my reply could not be played."
	default:
		return fmt.Sprintf("The %s step failed and the turn was skipped.", e.Stage)
	}
}

func newStageError(stage Stage, kind error, turn int64, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Turn: turn, Err: err}
}
