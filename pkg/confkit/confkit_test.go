package confkit_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlekeep/pkg/confkit"
)

func TestResolvePath(t *testing.T) {
	t.Setenv("CANDLEKEEP_CONF_DIR", "conf")

	tests := []struct {
		name     string
		base     string
		file     string
		expected string
	}{
		{name: "absolute path", base: "/base/dir", file: "/absolute/path/file.yaml", expected: "/absolute/path/file.yaml"},
		{name: "relative path", base: "/base/dir", file: "config/file.yaml", expected: "/base/dir/config/file.yaml"},
		{name: "relative path with env var", base: "/base/dir", file: "${CANDLEKEEP_CONF_DIR}/market.yaml", expected: "/base/dir/conf/market.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, confkit.ResolvePath(tt.base, tt.file))
		})
	}
}

func TestBaseDir(t *testing.T) {
	assert.Equal(t, "/etc/config", confkit.BaseDir("/etc/config/app.yaml"))
	assert.Equal(t, "/", confkit.BaseDir("/app.yaml"))
	assert.Equal(t, "config", confkit.BaseDir("config/app.yaml"))
}

func TestSectionHydrate(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		section := &confkit.Section[string]{}
		err := section.Hydrate("/base", func(string) (*string, error) {
			t.Error("loader should not be called for empty file")
			return nil, nil
		})
		require.NoError(t, err)
		assert.Nil(t, section.Value)
	})

	t.Run("successful hydration", func(t *testing.T) {
		section := &confkit.Section[string]{File: "market.yaml"}
		expected := "loaded"
		err := section.Hydrate("/base", func(path string) (*string, error) {
			assert.Equal(t, "/base/market.yaml", path)
			return &expected, nil
		})
		require.NoError(t, err)
		require.NotNil(t, section.Value)
		assert.Equal(t, expected, *section.Value)
		assert.Equal(t, "/base/market.yaml", section.File)
	})

	t.Run("loader error", func(t *testing.T) {
		section := &confkit.Section[string]{File: "market.yaml"}
		boom := errors.New("boom")
		err := section.Hydrate("/base", func(string) (*string, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, section.Value)
	})
}

func TestLoadFile(t *testing.T) {
	type sample struct {
		Name    string        `json:",default=candlekeep"`
		Timeout time.Duration `json:",default=5s"`
		Key     string        `json:",optional"`
	}
	t.Setenv("CANDLEKEEP_TEST_KEY", "secret")
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Key: ${CANDLEKEEP_TEST_KEY}\n"), 0o644))

	got, err := confkit.LoadFile[sample](path, true)
	require.NoError(t, err)
	assert.Equal(t, "candlekeep", got.Name)
	assert.Equal(t, 5*time.Second, got.Timeout)
	assert.Equal(t, "secret", got.Key)

	_, err = confkit.LoadFile[sample](filepath.Join(t.TempDir(), "missing.yaml"), false)
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	t.Setenv("CANDLEKEEP_TEST_KEY", "abc")
	assert.Equal(t, "abc", confkit.Expand("  ${CANDLEKEEP_TEST_KEY} "))
	assert.Empty(t, confkit.Expand("${CANDLEKEEP_UNSET_VAR}"))
}

func TestPositiveDuration(t *testing.T) {
	d, err := confkit.PositiveDuration("timeout", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = confkit.PositiveDuration("timeout", "1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = confkit.PositiveDuration("timeout", "-1s")
	assert.ErrorContains(t, err, "timeout must be positive")

	_, err = confkit.PositiveDuration("timeout", "soon")
	assert.ErrorContains(t, err, `invalid timeout "soon"`)
}

func TestProjectRootHasGoMod(t *testing.T) {
	root, err := confkit.ProjectRoot()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "go.mod"))
	assert.NoError(t, err)
}
