package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/touchamp/pkg/control"
)

// Closing the board mid-stream ends the sample stream and takes the
// amplifier offline; the last accepted level is still reported.
func TestMock_GracefulShutdown(t *testing.T) {
	mock := NewMock(testMockConfig())
	require.NoError(t, mock.Connect())
	require.NoError(t, mock.SetOutputLevel(21))

	samples := mock.Samples()

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range samples {
			received++
			assert.Equal(t, uint16(12345), s.Pot)
			if received == 3 {
				mock.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Samples channel did not close within timeout")
	}

	assert.GreaterOrEqual(t, received, 3, "Should receive samples before channel closes")

	_, ok := <-samples
	assert.False(t, ok, "Channel should be closed")

	assert.False(t, mock.IsConnected())
	assert.ErrorIs(t, mock.SetOutputLevel(40), control.ErrActuatorOffline)
	assert.Equal(t, 21, mock.Level())

	assert.NoError(t, mock.Close())
	assert.Error(t, mock.Connect(), "a closed board cannot be reopened")
}
