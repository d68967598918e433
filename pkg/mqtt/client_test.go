package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stubToken completes only when done is closed
type stubToken struct {
	done chan struct{}
	err  error
}

func (s *stubToken) Wait() bool {
	<-s.done
	return true
}

func (s *stubToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (s *stubToken) Done() <-chan struct{} { return s.done }

func (s *stubToken) Error() error { return s.err }

func TestWaitPublish(t *testing.T) {
	t.Run("stuck acknowledgement times out", func(t *testing.T) {
		token := &stubToken{done: make(chan struct{})}

		start := time.Now()
		err := waitPublish(token, 20*time.Millisecond)
		assert.ErrorIs(t, err, ErrPublishTimeout)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("completed", func(t *testing.T) {
		token := &stubToken{done: make(chan struct{})}
		close(token.done)
		assert.NoError(t, waitPublish(token, time.Second))
	})

	t.Run("broker error", func(t *testing.T) {
		token := &stubToken{done: make(chan struct{}), err: errors.New("not connected")}
		close(token.done)
		assert.EqualError(t, waitPublish(token, time.Second), "not connected")
	})
}
