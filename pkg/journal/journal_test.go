package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteNamesFilesBySequence(t *testing.T) {
	w := NewWriter(t.TempDir())
	ts := time.Date(2024, 7, 1, 13, 30, 5, 0, time.UTC)

	first, err := w.Write("run", ts, map[string]any{"kind": "update"})
	require.NoError(t, err)
	second, err := w.Write("run", ts, map[string]any{"kind": "rebuild"})
	require.NoError(t, err)

	assert.Equal(t, "run_20240701_133005_00001.json", filepath.Base(first))
	assert.Equal(t, "run_20240701_133005_00002.json", filepath.Base(second))

	raw, err := os.ReadFile(second)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "rebuild", got["kind"])
}

func TestWriteRejectsNil(t *testing.T) {
	w := NewWriter(t.TempDir())
	_, err := w.Write("run", time.Time{}, nil)
	assert.Error(t, err)
}
