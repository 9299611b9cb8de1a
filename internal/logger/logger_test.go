package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, json := range []bool{true, false} {
		l, err := New(json, true)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zap.DebugLevel))
	}

	l, err := New(false, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "abc", TruncateForLog("  abc  ", 10))
	assert.Equal(t, "ab...", TruncateForLog("abcdef", 2))
	assert.Equal(t, "", TruncateForLog("abc", 0))
	assert.Equal(t, "über...", TruncateForLog("überlong", 4))
}

func TestStringFields(t *testing.T) {
	fields := StringFields("a", "1", "", "2", "b", "  ", "c", " 3 ", "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Key)
	assert.Equal(t, "3", fields[1].String)
}

func TestForModel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ForModel(zap.New(core), "openai", "gpt-4o").Info("called")

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "openai", ctx[FieldProvider])
	assert.Equal(t, "gpt-4o", ctx[FieldModel])

	assert.NotNil(t, ForModel(nil, "", ""))
}
