// Package errors holds the error taxonomy shared by the transport, runtime
// and storage layers. Internal failures are wrapped around these sentinels
// with fmt.Errorf("%w: ...") so that logs keep the detail while clients only
// ever see the Kind and its stable message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated   = fmt.Errorf("unauthenticated")
	ErrTokenMissing      = fmt.Errorf("token missing")
	ErrTokenMalformed    = fmt.Errorf("token malformed")
	ErrTokenExpired      = fmt.Errorf("token expired")
	ErrTokenInvalid      = fmt.Errorf("token invalid")
	ErrUserNotFound      = fmt.Errorf("user not found")
	ErrNotAuthorized     = fmt.Errorf("not authorized")
	ErrInvalidContent    = fmt.Errorf("invalid content")
	ErrRoomNotFound      = fmt.Errorf("room not found")
	ErrPersistenceFailed = fmt.Errorf("persistence failed")
	ErrBackpressure      = fmt.Errorf("backpressure")

	ErrInvalidRequest     = fmt.Errorf("invalid request")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrForbidden          = fmt.Errorf("forbidden")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	// ErrSequenceConflict is the only transient store failure: another
	// transaction touched the room counter first and the append may be retried.
	ErrSequenceConflict = fmt.Errorf("sequence conflict")
	ErrSinkFull         = fmt.Errorf("sink buffer full")
	ErrSinkClosed       = fmt.Errorf("sink closed")
	ErrWorkerPanic      = fmt.Errorf("worker panic")
)

type Kind string

const (
	KindUnauthenticated    Kind = "Unauthenticated"
	KindTokenMissing       Kind = "TokenMissing"
	KindTokenMalformed     Kind = "TokenMalformed"
	KindTokenExpired       Kind = "TokenExpired"
	KindTokenInvalid       Kind = "TokenInvalid"
	KindUserNotFound       Kind = "UserNotFound"
	KindNotAuthorized      Kind = "NotAuthorized"
	KindInvalidContent     Kind = "InvalidContent"
	KindRoomNotFound       Kind = "RoomNotFound"
	KindPersistenceFailed  Kind = "PersistenceFailed"
	KindBackpressure       Kind = "Backpressure"
	KindInvalidRequest     Kind = "InvalidRequest"
	KindInvalidCredentials Kind = "InvalidCredentials"
	KindConflict           Kind = "Conflict"
	KindForbidden          Kind = "Forbidden"
	KindInternal           Kind = "Internal"
)

// Order matters: the first matching sentinel wins.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrTokenMissing, KindTokenMissing},
	{ErrTokenMalformed, KindTokenMalformed},
	{ErrTokenExpired, KindTokenExpired},
	{ErrTokenInvalid, KindTokenInvalid},
	{ErrUserNotFound, KindUserNotFound},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrNotAuthorized, KindNotAuthorized},
	{ErrInvalidContent, KindInvalidContent},
	{ErrRoomNotFound, KindRoomNotFound},
	{ErrBackpressure, KindBackpressure},
	{ErrSequenceConflict, KindPersistenceFailed},
	{ErrPersistenceFailed, KindPersistenceFailed},
	{ErrInvalidPassword, KindInvalidRequest},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrUserAlreadyExists, KindConflict},
	{ErrForbidden, KindForbidden},
}

var messages = map[Kind]string{
	KindUnauthenticated:    "Authentication required",
	KindTokenMissing:       "Authentication token required",
	KindTokenMalformed:     "Invalid authentication token",
	KindTokenExpired:       "Authentication token expired",
	KindTokenInvalid:       "Invalid authentication token",
	KindUserNotFound:       "Invalid user",
	KindNotAuthorized:      "Not a member of this room",
	KindInvalidContent:     "Message content is empty or too long",
	KindRoomNotFound:       "Room not found",
	KindPersistenceFailed:  "Failed to save message",
	KindBackpressure:       "Too many pending messages",
	KindInvalidRequest:     "Invalid request",
	KindInvalidCredentials: "Invalid credentials",
	KindConflict:           "Resource already exists",
	KindForbidden:          "Not allowed to modify this resource",
	KindInternal:           "Internal error",
}

// KindOf classifies err. Anything unknown is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// StableMessage is the only text a client ever receives for a failure.
func StableMessage(kind Kind) string {
	if msg, ok := messages[kind]; ok {
		return msg
	}
	return messages[KindInternal]
}

// IsCredentialFailure reports whether err happened while resolving a bearer token.
func IsCredentialFailure(err error) bool {
	switch KindOf(err) {
	case KindTokenMissing, KindTokenMalformed, KindTokenExpired, KindTokenInvalid, KindUserNotFound, KindUnauthenticated:
		return true
	default:
		return false
	}
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated, KindTokenMissing, KindTokenMalformed, KindTokenExpired,
		KindTokenInvalid, KindUserNotFound, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindNotAuthorized, KindForbidden:
		return http.StatusForbidden
	case KindRoomNotFound:
		return http.StatusNotFound
	case KindInvalidContent, KindInvalidRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindBackpressure:
		return http.StatusTooManyRequests
	case KindPersistenceFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
