package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(day int) time.Time {
	return time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
}

func TestNewRejectsInvertedRange(t *testing.T) {
	_, err := New(d(12), d(10))
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = New(d(10), d(10))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestOverlapIsHalfOpen(t *testing.T) {
	existing, err := New(d(10), d(15))
	require.NoError(t, err)

	inside, _ := New(d(12), d(14))
	adjacent, _ := New(d(15), d(18))
	before, _ := New(d(7), d(10))
	straddle, _ := New(d(14), d(16))

	assert.True(t, existing.Overlaps(inside))
	assert.True(t, existing.Overlaps(straddle))
	assert.False(t, existing.Overlaps(adjacent))
	assert.False(t, existing.Overlaps(before))
	assert.False(t, adjacent.Overlaps(existing))
}

func TestNightsRoundsUp(t *testing.T) {
	dr, _ := New(d(10), d(12))
	assert.Equal(t, 2, dr.Nights())

	dr, _ = New(d(10), d(10).Add(25*time.Hour))
	assert.Equal(t, 2, dr.Nights())

	dr, _ = New(d(10), d(10).Add(time.Hour))
	assert.Equal(t, 1, dr.Nights())
}

func TestIntersect(t *testing.T) {
	a, _ := New(d(10), d(15))
	b, _ := New(d(13), d(20))
	got, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, 2, got.Nights())

	c, _ := New(d(15), d(20))
	_, ok = a.Intersect(c)
	assert.False(t, ok)
}

func TestStartsBefore(t *testing.T) {
	dr, _ := New(d(10), d(12))
	assert.False(t, dr.StartsBefore(d(10).Add(20*time.Hour)))
	assert.True(t, dr.StartsBefore(d(11)))
}
