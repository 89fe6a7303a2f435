package ticker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickerPoll(t *testing.T) {
	ticker := New(time.Hour)

	var calls atomic.Int32

	go ticker.Tick(func(time.Time) { calls.Add(1) })

	ticker.Poll()
	ticker.Poll()
	require.Equal(t, int32(2), calls.Load())

	ticker.Stop()

	// Polling a stopped ticker does not block.
	ticker.Poll()
	require.Equal(t, int32(2), calls.Load())
}

func TestTickerPeriod(t *testing.T) {
	ticker := New(10 * time.Millisecond)
	defer ticker.Stop()

	var calls atomic.Int32

	go ticker.Tick(func(time.Time) { calls.Add(1) })

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
