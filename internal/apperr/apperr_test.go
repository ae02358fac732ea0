package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode_MapsKnownSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrAuthRejected, http.StatusUnauthorized},
		{ErrMalformedRequest, http.StatusBadRequest},
		{ErrAdmissionRejected, http.StatusTooManyRequests},
		{ErrUpstreamsUnavailable, http.StatusUnprocessableEntity},
		{ErrUpstreamRejected, http.StatusUnprocessableEntity},
		{ErrInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusCode(c.err))
	}
}

func TestStatusCode_WrappedErrorStillMatches(t *testing.T) {
	wrapped := errors.New("context: " + ErrUpstreamRejected.Error())
	assert.Equal(t, http.StatusInternalServerError, StatusCode(wrapped), "a non-errors.Is-wrapped error must not be misclassified")

	trueWrap := errorsJoinLike(ErrUpstreamRejected)
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(trueWrap))
}

func errorsJoinLike(err error) error {
	return &wrapErr{err}
}

type wrapErr struct{ err error }

func (w *wrapErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapErr) Unwrap() error { return w.err }

func TestStatusCode_NilIsInternalError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(nil))
}

func TestStatusCode_UnknownErrorIsInternalError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}
