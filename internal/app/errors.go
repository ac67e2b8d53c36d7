package app

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopherai-slides/internal/ai"
	"gopherai-slides/internal/source"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNoContent            = errors.New("no usable content: provide a prompt, documents or reachable urls")
	ErrPresentationNotFound = errors.New("presentation not found")
	ErrNoKnowledgeBase      = errors.New("no knowledge base for this presentation")
	ErrNotPending           = errors.New("presentation is not pending")
	ErrAsyncUnavailable     = errors.New("asynchronous generation is not configured")
)

type Stage string

const (
	StageNormalizing Stage = "normalizing"
	StageDrafting    Stage = "drafting"
	StageImaging     Stage = "imaging"
	StageAssembling  Stage = "assembling"
	StagePersisting  Stage = "persisting"
)

// StageError tags a pipeline failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ClaimError means the record could not be claimed, so the run never started
// and nothing was written. Retrying the job is safe.
type ClaimError struct {
	PresentationID string
	Err            error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim presentation %s failed: %v", e.PresentationID, e.Err)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

func (e *ClaimError) Temporary() bool {
	return true
}

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

const maxUserMessage = 200

// UserMessage derives a short message for end users from the innermost error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		srcErr *source.SourceError
		genErr *ai.GenerationBackendError
		embErr *ai.EmbeddingBackendError
	)
	switch {
	case errors.Is(err, ErrNoContent):
		return ErrNoContent.Error()
	case errors.As(err, &srcErr):
		return limit(fmt.Sprintf("could not read %s %q: %s", srcErr.Kind, srcErr.Source, innermost(srcErr.Err).Error()))
	case errors.As(err, &genErr):
		switch {
		case genErr.RateLimited():
			return "the text generation service is rate limited, please try again later"
		case genErr.Unauthorized():
			return "the text generation service rejected its credentials"
		default:
			return "the text generation service failed to respond"
		}
	case errors.As(err, &embErr):
		return "the embedding service failed to respond"
	}
	return limit(innermost(err).Error())
}

func innermost(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func limit(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxUserMessage {
		return s
	}
	return string([]rune(s)[:maxUserMessage]) + "..."
}
