package errx

import (
	"context"
	"errors"
	"net/http"
)

// WrapCompletion maps a failed completion call to an external-call error.
func WrapCompletion(err error) error {
	if err == nil {
		return nil
	}
	return NewExternal(err, statusForExternal(err), CompletionErrorMessage)
}

// WrapTranslation maps a failed translation call to an external-call error.
func WrapTranslation(err error) error {
	if err == nil {
		return nil
	}
	return NewExternal(err, statusForExternal(err), TranslationErrorMessage)
}

func statusForExternal(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
