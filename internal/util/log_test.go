package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopedLoggerFields(t *testing.T) {
	session := Scoped("session", "abc")
	a := session.With("role", "offer")
	b := session.With("role", "answer")

	assert.Equal(t, []any{"session", "abc"}, session.kv)
	assert.Equal(t, []any{"session", "abc", "role", "offer"}, a.kv)
	assert.Equal(t, []any{"session", "abc", "role", "answer"}, b.kv, "children do not share storage")

	assert.Len(t, a.args(), 1)
	assert.Nil(t, root.args())

	var nilLogger *Logger
	assert.Nil(t, nilLogger.args())
}

func TestPionLoggerIsScoped(t *testing.T) {
	l := NewPionLoggerFactory().NewLogger("ice").(*pionLogger)
	assert.Equal(t, []any{"pion", "ice"}, l.log.kv)
}
