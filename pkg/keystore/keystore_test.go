package keystore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv(KeyName, "")

	s, err := New(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	return s
}

func TestLoadMissingFile(t *testing.T) {
	s := newStore(t)

	key, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, key)
}

func TestSaveThenLoad(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save("abc123"))

	key, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", key)

	env, err := godotenv.Read(s.Path())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyName: "abc123"}, env)
}

func TestSavePreservesOtherEntries(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("TRADFRI_SECURITY_CODE=xyz\nPRESHARED_KEY=old\n"), 0o600))

	require.NoError(t, s.Save("new"))

	env, err := godotenv.Read(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "xyz", env["TRADFRI_SECURITY_CODE"])
	assert.Equal(t, "new", env[KeyName])
}

func TestSaveKeepsLeadingZeros(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.Save("007123"))

	key, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "007123", key)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "PRESHARED_KEY=\"007123\"\n", string(data))
}

func TestSaveLeavesOtherLinesUntouched(t *testing.T) {
	s := newStore(t)
	t.Setenv("TRADFRI_HOME", "/srv/tradfri")

	original := "# gateway\nZIP=01234\nPATHX=${TRADFRI_HOME}/bin\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(original), 0o600))

	require.NoError(t, s.Save("k"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, original+"PRESHARED_KEY=\"k\"\n", string(data))
}

func TestSaveReplacesKeyInPlace(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(),
		[]byte("A=1\nexport PRESHARED_KEY=old\nB=2\nPRESHARED_KEY=older\n"), 0o600))

	require.NoError(t, s.Save("new"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "A=1\nPRESHARED_KEY=\"new\"\nB=2\n", string(data))
}

func TestSaveAppendsAfterUnterminatedLine(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("A=1"), 0o600))

	require.NoError(t, s.Save("k"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "A=1\nPRESHARED_KEY=\"k\"\n", string(data))
}

func TestSaveQuotesSpecialCharacters(t *testing.T) {
	s := newStore(t)
	t.Setenv("HOME_DIR", "/home/x")

	const key = `a"b\\c$HOME_DIR#d`
	require.NoError(t, s.Save(key))

	got, _, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestSaveEmptyKey(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.Save(""))
}

func TestSaveCreatesDirectory(t *testing.T) {
	t.Setenv(KeyName, "")
	s, err := New(filepath.Join(t.TempDir(), "nested", "dir", ".env"))
	require.NoError(t, err)

	require.NoError(t, s.Save("k"))

	_, err = os.Stat(s.Path())
	assert.NoError(t, err)
}

func TestLoadFallsBackToEnvironment(t *testing.T) {
	s := newStore(t)
	t.Setenv(KeyName, "from-env")

	key, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-env", key)
}

func TestFileTakesPrecedenceOverEnvironment(t *testing.T) {
	s := newStore(t)
	t.Setenv(KeyName, "from-env")
	require.NoError(t, s.Save("from-file"))

	key, _, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)
}

func TestConcurrentSaves(t *testing.T) {
	s := newStore(t)

	var wg sync.WaitGroup
	for _, k := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Save(k))
		}()
	}
	wg.Wait()

	key, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, []string{"a", "b", "c", "d"}, key)
}
