package issuances

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_WindowSlides(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Record(ctx, "u1", t0.Add(time.Duration(i)*20*time.Minute)))
	}
	require.NoError(t, r.Record(ctx, "u2", t0))

	n, oldest, _ := r.Window(ctx, "u1", t0.Add(-time.Nanosecond))
	assert.Equal(t, 3, n)
	assert.Equal(t, t0, oldest)

	n, _, _ = r.Window(ctx, "u1", t0)
	assert.Equal(t, 2, n, "boundary is exclusive")

	n, oldest, _ = r.Window(ctx, "u1", t0.Add(time.Minute))
	assert.Equal(t, 2, n)
	assert.Equal(t, t0.Add(20*time.Minute), oldest)

	deleted, _ := r.DeleteBefore(ctx, t0.Add(30*time.Minute))
	assert.EqualValues(t, 3, deleted)

	n, _, _ = r.Window(ctx, "u2", time.Time{})
	assert.Zero(t, n)
	n, _, _ = r.Window(ctx, "u1", time.Time{})
	assert.Equal(t, 1, n)
}
