package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("load post: %w", NotFound("posts.get", "post not found"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestFromDB(t *testing.T) {
	assert.Nil(t, FromDB("op", nil))
	assert.True(t, errors.Is(FromDB("op", pgx.ErrNoRows), ErrNotFound))
	assert.True(t, errors.Is(FromDB("op", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}), ErrConflict))
	assert.True(t, errors.Is(FromDB("op", errors.New("boom")), ErrInternal))

	already := Validation("op", "bad")
	assert.Same(t, already, FromDB("other", already))
}

func TestHTTPStatusAndPublicMessage(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{NotFound("op", "post not found"), http.StatusNotFound, "post not found"},
		{Validation("op", "title required"), http.StatusBadRequest, "title required"},
		{FromDB("op", &pgconn.PgError{Code: "23505"}), http.StatusConflict, "already exists ()"},
		{Messaging("op", errors.New("broker down")), http.StatusBadGateway, "internal server error"},
		{errors.New("raw"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), tc.err.Error())
		assert.Equal(t, tc.msg, PublicMessage(tc.err), tc.err.Error())
	}
}

func TestErrorString(t *testing.T) {
	err := Wrap(KindMessaging, "bus.publish", errors.New("timeout"))
	assert.Equal(t, "bus.publish: messaging_error: timeout", err.Error())
}
