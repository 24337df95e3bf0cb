package model

import "context"

// LanguageDetector classifies text as English or Arabic. Ambiguous answers
// resolve to English; failures of the underlying service are returned.
type LanguageDetector interface {
	Detect(ctx context.Context, text string) (Language, error)
}

// MathClassifier decides whether text is a math question.
type MathClassifier interface {
	IsMathRelated(ctx context.Context, text string) (bool, error)
}

// Translator translates text into the target language.
type Translator interface {
	Translate(ctx context.Context, text string, target Language) (string, error)
}

// Responder answers an English math question, using the calculator tool.
type Responder interface {
	Respond(ctx context.Context, query string) (string, error)
}

// ReplyRepository remembers replies by inbound message id so redelivered
// queue messages are answered without running the pipeline again.
type ReplyRepository interface {
	// SaveReply stores the reply for a message id.
	SaveReply(ctx context.Context, messageID string, reply string) error

	// LoadReply returns the stored reply; ok is false when none exists.
	LoadReply(ctx context.Context, messageID string) (reply string, ok bool, err error)
}
