package entity

import "fmt"

type FetchErrorKind string

const (
	// FetchErrorNetwork covers transport failures: unreachable host, refused connection, timeout.
	FetchErrorNetwork FetchErrorKind = "network"
	// FetchErrorProtocol covers undecodable bodies and documents without recognizable fields.
	FetchErrorProtocol FetchErrorKind = "protocol"
	// FetchErrorServer covers non-2xx responses.
	FetchErrorServer FetchErrorKind = "server"
)

type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}

	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func NewNetworkError(cause error) *FetchError {
	return &FetchError{Kind: FetchErrorNetwork, Message: "snapshot endpoint unreachable", Cause: cause}
}

func NewProtocolError(message string, cause error) *FetchError {
	return &FetchError{Kind: FetchErrorProtocol, Message: message, Cause: cause}
}

func NewServerError(statusCode int, message string) *FetchError {
	return &FetchError{Kind: FetchErrorServer, StatusCode: statusCode, Message: message}
}
