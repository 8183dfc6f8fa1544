package credstore_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-client/credstore"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv credstore.KV) {
	t.Helper()

	_, ok, err := kv.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set("accessToken", "tok-1"))
	v, ok, err := kv.Get("accessToken")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok-1", v)

	require.NoError(t, kv.Set("accessToken", "tok-2"))
	v, _, _ = kv.Get("accessToken")
	require.Equal(t, "tok-2", v)

	require.NoError(t, kv.Delete("accessToken"))
	_, ok, err = kv.Get("accessToken")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Delete("accessToken"), "deleting a missing key is not an error")
}

func TestMemoryKV(t *testing.T) {
	kv := credstore.NewMemoryKV()
	exerciseKV(t, kv)
	require.Error(t, kv.Set("", "x"))
	require.Equal(t, 0, kv.Len())
}

func TestFileKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	kv, err := credstore.NewFileKV(path)
	require.NoError(t, err)
	exerciseKV(t, kv)

	require.NoError(t, kv.Set("user", `{"username":"admin"}`))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := credstore.NewFileKV(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get("user")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"username":"admin"}`, v)
}

func TestFileKVCorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	kv, err := credstore.NewFileKV(path)
	require.NoError(t, err)

	_, ok, err := kv.Get("accessToken")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set("accessToken", "fresh"))
	v, ok, _ := kv.Get("accessToken")
	require.True(t, ok)
	require.Equal(t, "fresh", v)
}

func TestFileKVConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	a, err := credstore.NewFileKV(path)
	require.NoError(t, err)
	b, err := credstore.NewFileKV(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		key := string(rune('a' + i))
		go func() { defer wg.Done(); errs <- a.Set("a-"+key, key) }()
		go func() { defer wg.Done(); errs <- b.Set("b-"+key, key) }()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for i := 0; i < 20; i++ {
		key := string(rune('a' + i))
		_, ok, _ := a.Get("a-" + key)
		require.True(t, ok, "a-%s lost", key)
		_, ok, _ = a.Get("b-" + key)
		require.True(t, ok, "b-%s lost", key)
	}
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	kv, err := credstore.NewSQLiteKV(path)
	require.NoError(t, err)
	exerciseKV(t, kv)

	require.NoError(t, kv.Set("user", "persisted"))
	require.NoError(t, kv.Close())

	reopened, err := credstore.NewSQLiteKV(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	v, ok, err := reopened.Get("user")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "persisted", v)
}

func TestSealedKV(t *testing.T) {
	inner := credstore.NewMemoryKV()
	key := []byte(strings.Repeat("k", 32))

	sealed, err := credstore.NewSealedKV(inner, key)
	require.NoError(t, err)
	exerciseKV(t, sealed)

	require.NoError(t, sealed.Set("accessToken", "secret-token"))
	raw, ok, _ := inner.Get("accessToken")
	require.True(t, ok)
	require.NotContains(t, raw, "secret-token")

	other, err := credstore.NewSealedKV(inner, []byte(strings.Repeat("x", 32)))
	require.NoError(t, err)
	_, ok, err = other.Get("accessToken")
	require.NoError(t, err)
	require.False(t, ok, "a value sealed with another key reads as absent")

	require.NoError(t, inner.Set("user", "plain text"))
	_, ok, err = sealed.Get("user")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = credstore.NewSealedKV(inner, []byte("short"))
	require.Error(t, err)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	key := make([]byte, 32)

	for _, driver := range []string{credstore.DriverMemory, credstore.DriverFile, credstore.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			kv, closer, err := credstore.Open(driver, filepath.Join(dir, driver, "session"), nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = closer.Close() })
			exerciseKV(t, kv)
		})
	}

	kv, closer, err := credstore.Open(credstore.DriverMemory, "", key)
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	require.IsType(t, &credstore.SealedKV{}, kv)

	_, _, err = credstore.Open("redis", "", nil)
	require.Error(t, err)
}
