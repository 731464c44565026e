package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailHashStableAndNormalized(t *testing.T) {
	a := EmailHash("a@x.com")
	assert.Len(t, a, 16)
	assert.Equal(t, a, EmailHash("  A@X.com "))
	assert.NotEqual(t, a, EmailHash("b@x.com"))
	assert.NotContains(t, a, "@")
}

func TestNew(t *testing.T) {
	for _, env := range []string{"prod", "dev"} {
		log, err := New(env)
		assert.NoError(t, err)
		assert.NotNil(t, log)
	}
}
