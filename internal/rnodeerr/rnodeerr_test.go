package rnodeerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBridgeErrorUnwrapAndMessage(t *testing.T) {
	cause := errors.New("device not connected")
	be := New(KindTransport, "gattlink.Connect", cause)

	assert.Equal(t, "gattlink.Connect: transport: device not connected", be.Error())
	assert.ErrorIs(t, be, cause)
}

func TestBridgeErrorIsMatchesOnKind(t *testing.T) {
	a := New(KindTimeout, "op-a", errors.New("a"))
	b := New(KindTimeout, "op-b", errors.New("b"))
	c := New(KindTransport, "op-c", errors.New("c"))

	assert.True(t, errors.Is(a, ErrTimeout))
	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

func TestClassifyFyiyPreservesAlreadyClassifiedErrors(t *testing.T) {
	inner := New(KindAuthRequired, "pairing", errors.New("not paired"))
	wrapped := fmt.Errorf("outer: %w", inner)

	got := Classify("outer-op", wrapped)
	var be *BridgeError
	assert.True(t, errors.As(got, &be))
	assert.Equal(t, KindAuthRequired, be.Kind)
}

func TestClassifyMapsContextErrors(t *testing.T) {
	assert.True(t, errors.Is(Classify("op", context.DeadlineExceeded), ErrTimeout))
	assert.True(t, errors.Is(Classify("op", context.Canceled), ErrCancelled))
}

func TestClassifyFallsBackToAuthDetectionThenTransport(t *testing.T) {
	authErr := Classify("op", errors.New("bonding required before this operation"))
	assert.True(t, errors.Is(authErr, ErrAuthRequired))

	plain := Classify("op", errors.New("write failed"))
	assert.True(t, errors.Is(plain, ErrTransport))
}

func TestClassifyAuthFailureTokens(t *testing.T) {
	cases := []string{"Not Paired", "Authentication required", "bonding failed", "security error"}
	for _, msg := range cases {
		assert.True(t, ClassifyAuthFailure(msg), msg)
	}
	assert.False(t, ClassifyAuthFailure("write succeeded"))
}
