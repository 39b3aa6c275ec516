package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNilError(t *testing.T) {
	require.NoError(t, New(KindSend, "send", nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(KindSearch, "search", errors.New("BAD command"))
	wrapped := fmt.Errorf("check failed: %w", base)

	assert.Equal(t, KindSearch, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindSearch))
	assert.False(t, IsKind(wrapped, KindSend))
	assert.Contains(t, wrapped.Error(), "search: search error: BAD command")
}

func TestConnectionLostIsDetectable(t *testing.T) {
	err := New(KindSend, "send", errors.Join(ErrConnectionLost, errors.New("EOF")))

	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.NotErrorIs(t, err, ErrNotConnected)
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(New(KindConnection, "dial", errors.New("refused"))))
	assert.True(t, Recoverable(New(KindSend, "data", errors.New("451"))))
	assert.False(t, Recoverable(New(KindConfiguration, "load", errors.New("placeholder"))))
	assert.False(t, Recoverable(errors.New("plain")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "date_parse", KindDateParse.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
