package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	f := Fixed{Interval: 30 * time.Second}
	assert.Equal(t, 30*time.Second, f.Delay(1))
	assert.Equal(t, 30*time.Second, f.Delay(10))
}

func TestExponential(t *testing.T) {
	e := Exponential{Initial: 10 * time.Second, Max: 2 * time.Minute}
	assert.Equal(t, 10*time.Second, e.Delay(1))
	assert.Equal(t, 20*time.Second, e.Delay(2))
	assert.Equal(t, 40*time.Second, e.Delay(3))
	assert.Equal(t, 80*time.Second, e.Delay(4))
	assert.Equal(t, 2*time.Minute, e.Delay(5)) // capped
	assert.Equal(t, 2*time.Minute, e.Delay(20))
}

func TestForPolicy(t *testing.T) {
	assert.IsType(t, Exponential{}, ForPolicy("exponential"))
	assert.IsType(t, Fixed{}, ForPolicy("fixed"))
	assert.IsType(t, Fixed{}, ForPolicy("anything else"))
}
