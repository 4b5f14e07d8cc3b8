package confkit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotenvFromExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.env")
	require.NoError(t, os.WriteFile(path, []byte("CANDLEKEEP_DOTENV_A=from-file\nCANDLEKEEP_DOTENV_B=from-file\n"), 0o600))
	t.Setenv("CANDLEKEEP_ENV_FILE", path)
	t.Setenv("NO_DOTENV", "")
	t.Setenv("DOTENV_OVERLOAD", "")
	t.Setenv("CANDLEKEEP_DOTENV_A", "preset")
	t.Setenv("CANDLEKEEP_DOTENV_B", "")
	require.NoError(t, os.Unsetenv("CANDLEKEEP_DOTENV_B"))

	loadDotenv()

	assert.Equal(t, "preset", os.Getenv("CANDLEKEEP_DOTENV_A"))
	assert.Equal(t, "from-file", os.Getenv("CANDLEKEEP_DOTENV_B"))
}

func TestLoadDotenvDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.env")
	require.NoError(t, os.WriteFile(path, []byte("CANDLEKEEP_DOTENV_C=from-file\n"), 0o600))
	t.Setenv("CANDLEKEEP_ENV_FILE", path)
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("CANDLEKEEP_DOTENV_C", "")
	require.NoError(t, os.Unsetenv("CANDLEKEEP_DOTENV_C"))

	loadDotenv()

	_, ok := os.LookupEnv("CANDLEKEEP_DOTENV_C")
	assert.False(t, ok)
}

func TestProjectRootHonoursEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(RootEnv, dir)
	root, err := ProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}
