package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	f := NewFake(start)

	assert.Equal(t, start, f.Now())
	assert.Equal(t, start.Add(45*time.Second), f.Advance(45*time.Second))

	f.Set(start.Add(-time.Minute))
	assert.Equal(t, start.Add(-time.Minute), f.Now())
}

func TestSystemIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, System{}.Now().Location())
}
