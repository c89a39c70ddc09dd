package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsSortable(t *testing.T) {
	prev := New()
	for i := 0; i < 100; i++ {
		next := New()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestAt_RoundTripsTime(t *testing.T) {
	ts := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	got, err := Time(At(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}
