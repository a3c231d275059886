package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyKeepsSentinelIdentity(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := Classify(ErrSessionRefresh, cause, "refresh session")

	assert.True(t, errors.Is(err, ErrSessionRefresh))
	assert.False(t, errors.Is(err, ErrUpstream))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "refresh session: dial tcp: timeout", err.Error())
	assert.Equal(t, http.StatusBadGateway, err.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Nil(t, FromError(nil))

	typed := Clone(ErrSyncBusy, "busy")
	assert.Same(t, typed, FromError(fmt.Errorf("wrapped: %w", typed)))
}

func TestCloneOverridesMessageOnly(t *testing.T) {
	clone := Clone(ErrStateMiss, "state html.homework not found")
	assert.Equal(t, ErrStateMiss.Code, clone.Code)
	assert.Equal(t, "state html.homework not found", clone.Message)
	assert.Equal(t, "state value not found", ErrStateMiss.Message)
}
