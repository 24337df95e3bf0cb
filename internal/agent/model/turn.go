package model

import (
	"errors"
	"fmt"
	"strings"
)

// Language is the closed label set produced by language detection.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
	LanguageUnknown Language = "unknown"
)

// ParseLanguage normalises a free-form label ("AR", " en.", "'ar'") into a
// Language. Anything else is LanguageUnknown.
func ParseLanguage(label string) Language {
	l := strings.ToLower(strings.TrimSpace(label))
	l = strings.Trim(l, "'\"`.!")
	switch Language(l) {
	case LanguageArabic:
		return LanguageArabic
	case LanguageEnglish:
		return LanguageEnglish
	default:
		return LanguageUnknown
	}
}

// Routed returns the branch language: only Arabic is routed through
// translation, everything else takes the default English path.
func (l Language) Routed() Language {
	if l == LanguageArabic {
		return LanguageArabic
	}
	return LanguageEnglish
}

// DisplayName is the English name of the language, as used in prompts.
func (l Language) DisplayName() string {
	if l == LanguageArabic {
		return "Arabic"
	}
	return "English"
}

// Stage is one state of the per-request routing state machine.
type Stage string

const (
	StageStart          Stage = "start"
	StageDetectLanguage Stage = "detect_language"
	StageBranchArabic   Stage = "branch_arabic"
	StageBranchDefault  Stage = "branch_default"
	StageClassify       Stage = "classify"
	StageEvaluate       Stage = "evaluate"
	StageRefuse         Stage = "refuse"
	StageTranslateBack  Stage = "translate_back"
	StageDone           Stage = "done"
)

var (
	ErrTurnFinalized  = errors.New("conversation turn already has a final reply")
	ErrStageRevisited = errors.New("stage already visited")
)

// ConversationTurn is the record of one request flowing through the
// pipeline. It is owned by a single pipeline run and never persisted.
type ConversationTurn struct {
	ID               string
	RawText          string
	DetectedLanguage Language
	// EnglishText is the text handed to the classifier (RawText on the
	// default branch, its translation on the Arabic branch).
	EnglishText     string
	IsMath          bool
	EvaluatedAnswer *string
	FinalReply      string
	Stages          []Stage

	finalized bool
}

// NewConversationTurn starts a turn in StageStart.
func NewConversationTurn(id, text string) *ConversationTurn {
	return &ConversationTurn{
		ID:               id,
		RawText:          text,
		DetectedLanguage: LanguageUnknown,
		Stages:           []Stage{StageStart},
	}
}

// Enter records a transition to s. Stages are never revisited and nothing
// changes once the final reply is set.
func (t *ConversationTurn) Enter(s Stage) error {
	if t.finalized {
		return fmt.Errorf("enter %s: %w", s, ErrTurnFinalized)
	}
	for _, seen := range t.Stages {
		if seen == s {
			return fmt.Errorf("enter %s: %w", s, ErrStageRevisited)
		}
	}
	t.Stages = append(t.Stages, s)
	return nil
}

// SetAnswer stores the English answer produced by the responder.
func (t *ConversationTurn) SetAnswer(answer string) error {
	if t.finalized {
		return ErrTurnFinalized
	}
	t.EvaluatedAnswer = &answer
	return nil
}

// Answer returns the evaluated answer, if any.
func (t *ConversationTurn) Answer() (string, bool) {
	if t.EvaluatedAnswer == nil {
		return "", false
	}
	return *t.EvaluatedAnswer, true
}

// Finalize sets the reply and moves the turn to StageDone. It succeeds once.
func (t *ConversationTurn) Finalize(reply string) error {
	if t.finalized {
		return ErrTurnFinalized
	}
	t.FinalReply = reply
	t.finalized = true
	t.Stages = append(t.Stages, StageDone)
	return nil
}

// Finalized reports whether the final reply has been set.
func (t *ConversationTurn) Finalized() bool {
	return t.finalized
}

// NeedsTranslation reports whether the turn runs on the Arabic branch.
func (t *ConversationTurn) NeedsTranslation() bool {
	return t.DetectedLanguage.Routed() == LanguageArabic
}

// Visited reports whether s is in the stage trail.
func (t *ConversationTurn) Visited(s Stage) bool {
	for _, seen := range t.Stages {
		if seen == s {
			return true
		}
	}
	return false
}
