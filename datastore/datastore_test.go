package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestReadJSONMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()

	var v map[string]int
	ok, err := ReadJSON(filepath.Join(dir, "nope.json"), &v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	v = map[string]int{"keep": 1}
	ok, err = ReadJSON(bad, &v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, map[string]int{"keep": 1}, v)
}

func TestWriteJSONAtomicRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	require.NoError(t, WriteJSON(path, map[string]string{"a": "b"}))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	var got map[string]string
	ok, err := ReadJSON(path, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", got["a"])
}

func TestDataStoreSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xp.json")
	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0

	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	ds.Add("g1", map[string]any{"u1": 10})
	ds.Add("g2", "x")
	ds.Delete("g2")
	require.NoError(t, ds.Close())

	again, err := NewWithConfig(cfg)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, []string{"g1"}, again.Keys())
	v, ok := again.Get("g1")
	require.True(t, ok)
	assert.Equal(t, float64(10), v.(map[string]any)["u1"])
}

func TestDataStoreMalformedStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2"), 0644))

	ds, err := New(path)
	require.NoError(t, err)
	defer ds.Close()
	assert.Empty(t, ds.Keys())
}

func TestBackupsAreRotated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	cfg := &Config{FilePath: path, BackupCount: 1}
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)

	ds.Add("a", 1)
	require.NoError(t, ds.SaveToFile())
	ds.Add("b", 2)
	require.NoError(t, ds.SaveToFile())
	require.NoError(t, ds.Close())

	matches, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 1)
}
