package openai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleDisabled(t *testing.T) {
	th := newThrottle(0)
	assert.Nil(t, th)
	assert.NoError(t, th.wait(context.Background()))
}

func TestThrottleHonorsContext(t *testing.T) {
	th := newThrottle(0.001)
	require.NotNil(t, th)

	// First token is available immediately.
	require.NoError(t, th.wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, th.wait(ctx))
}
