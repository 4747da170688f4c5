// Package apperr defines the error taxonomy shared by every service.
//
// Errors carry a Kind so callers can branch with errors.Is against the
// sentinel values (ErrNotFound, ErrConflict, ...) without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindUnauthorized
	KindMessaging
	KindSerialization
	KindInvalidConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindMessaging:
		return "messaging_error"
	case KindSerialization:
		return "serialization_error"
	case KindInvalidConfiguration:
		return "invalid_configuration"
	default:
		return "internal_error"
	}
}

// Error is the concrete error type. Op names the failing operation
// (e.g. "outbox.fetch_unsent"), Msg is safe to show to API clients.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels compare by kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrValidation           = &Error{Kind: KindValidation}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized}
	ErrMessaging            = &Error{Kind: KindMessaging}
	ErrSerialization        = &Error{Kind: KindSerialization}
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	ErrInternal             = &Error{Kind: KindInternal}
)

func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func NotFound(op, msg string) error   { return New(KindNotFound, op, msg) }
func Validation(op, msg string) error { return New(KindValidation, op, msg) }

func Messaging(op string, err error) error     { return Wrap(KindMessaging, op, err) }
func Serialization(op string, err error) error { return Wrap(KindSerialization, op, err) }

func InvalidConfiguration(op string, err error) error {
	return Wrap(KindInvalidConfiguration, op, err)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromDB classifies a primary-store error. pgx.ErrNoRows becomes NotFound and
// unique violations become Conflict; everything else is Internal.
func FromDB(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: KindNotFound, Op: op, Msg: "record not found", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf("already exists (%s)", pgErr.ConstraintName), Err: err}
	}
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindSerialization:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindMessaging:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that may be shown to API clients.
// Internal failures never leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case KindInternal, KindInvalidConfiguration, KindMessaging:
		return "internal server error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.String()
}
