package storage

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOverwrites(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("data.homework_json", []byte(`[{"id":"1"}]`)))
	require.NoError(t, store.Save("data.homework_json", []byte(`[]`)))

	data, err := store.Read("data.homework_json")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestLocalStorageReadMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read("html.homework")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Save("../escape", []byte("x")))
	assert.Error(t, store.Save("", []byte("x")))
}

func TestLocalStorageDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("info.connection", []byte("true")))
	require.NoError(t, store.Delete("info.connection"))
	require.NoError(t, store.Delete("info.connection"))

	_, err = store.Read("info.connection")
	assert.Error(t, err)
}
