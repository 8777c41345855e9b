package chat

// Kind classifies a business-rule failure so the transport layer can pick
// the right client notification.
type Kind int

const (
	KindValidation Kind = iota
	KindAuth
	KindAuthorization
	KindConflict
)

// Error is a business-rule violation surfaced to the offending client
// only. It never tears down a connection.
type Error struct {
	Kind        Kind
	Message     string
	Suggestions []string // alternative usernames, set on auth failures

	// Challenge marks the taken-username case where the client should
	// offer to sign in instead of treating it as a hard failure.
	Challenge bool
}

func (e *Error) Error() string { return e.Message }

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func authError(msg string, suggestions []string) *Error {
	return &Error{Kind: KindAuth, Message: msg, Suggestions: suggestions}
}

func authorizationError(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func conflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}
