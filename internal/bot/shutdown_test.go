package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestShutdownReverseOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)
	var order []string
	for _, name := range []string{"store", "bus", "supervisor"} {
		sh.AddFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, sh.Shutdown(context.Background()))
	assert.Equal(t, []string{"supervisor", "bus", "store"}, order)

	// Services are closed once.
	assert.NoError(t, sh.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownCollectsErrorsAndTimeouts(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 20*time.Millisecond)
	block := make(chan struct{})
	defer close(block)

	closed := false
	sh.AddFunc("last", func() error { closed = true; return nil })
	sh.AddFunc("broken", func() error { return errors.New("boom") })
	sh.AddFunc("stuck", func() error { <-block; return nil })

	err := sh.Shutdown(context.Background())
	assert.ErrorContains(t, err, "broken: boom")
	assert.ErrorContains(t, err, "stuck: shutdown timeout")
	assert.True(t, closed)
}
