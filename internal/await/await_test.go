package await

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_ReturnsResult(t *testing.T) {
	req := require.New(t)
	v, err := Do(context.Background(), func(context.Context) (int, error) { return 42, nil })
	req.NoError(err)
	req.Equal(42, v)
}

func TestDo_TimesOutOnStuckCall(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	block := make(chan struct{})
	defer close(block)

	// Given a collaborator that never answers
	_, err := Do(ctx, func(context.Context) (int, error) {
		<-block
		return 0, nil
	})

	// Then the caller is released by the deadline
	req.True(errors.Is(err, context.DeadlineExceeded))
}
