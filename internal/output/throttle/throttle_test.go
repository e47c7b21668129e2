package throttle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crimson-sun/vigil/internal/model"
)

type countingSms struct{ n int }

func (c *countingSms) NotifyWithSms(context.Context, model.Event) error {
	c.n++
	return nil
}

func TestBurstThenDrop(t *testing.T) {
	inner := &countingSms{}
	th := New(inner, 0.001, 3)

	for i := 0; i < 10; i++ {
		assert.NoError(t, th.NotifyWithSms(context.Background(), model.Event{Key: "k"}))
	}
	assert.Equal(t, 3, inner.n)
	assert.Equal(t, int64(7), th.Dropped())
}

func TestUnsupportedChannelIsNoop(t *testing.T) {
	inner := &countingSms{}
	th := New(inner, 10, 10)

	assert.NoError(t, th.Notify(context.Background(), model.Event{Key: "k"}))
	assert.NoError(t, th.NotifyWithEmail(context.Background(), model.Event{Key: "k"}))
	assert.Equal(t, 0, inner.n)
	assert.Equal(t, int64(0), th.Dropped())
	assert.NoError(t, th.Close())
}
