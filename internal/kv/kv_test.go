package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Set(ctx, "k", []byte("one")))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, s.Set(ctx, "k", []byte("two")))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Delete(ctx, "k"), "deleting a missing key is not an error")

	// Update sees nil for a missing key, writes, and deletes on nil.
	require.NoError(t, s.Update(ctx, "u", func(old []byte) ([]byte, error) {
		assert.Nil(t, old)
		return []byte("a"), nil
	}))
	require.NoError(t, s.Update(ctx, "u", func(old []byte) ([]byte, error) {
		return append(old, 'b'), nil
	}))
	got, err = s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got)

	boom := errors.New("boom")
	err = s.Update(ctx, "u", func([]byte) ([]byte, error) { return []byte("lost"), boom })
	assert.ErrorIs(t, err, boom)
	got, err = s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), got, "a failed update writes nothing")

	require.NoError(t, s.Update(ctx, "u", func([]byte) ([]byte, error) { return nil, nil }))
	got, err = s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// counterUpdate increments a decimal counter stored under key.
func counterUpdate(old []byte) ([]byte, error) {
	n := 0
	if old != nil {
		var err error
		if n, err = strconv.Atoi(string(old)); err != nil {
			return nil, err
		}
	}
	return []byte(strconv.Itoa(n + 1)), nil
}

// testConcurrentUpdates runs increments through two handles on the same
// backing store and checks that none is lost.
func testConcurrentUpdates(t *testing.T, a, b Store) {
	t.Helper()
	ctx := context.Background()
	const perHandle = 25

	var wg sync.WaitGroup
	for _, s := range []Store{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perHandle {
				assert.NoError(t, s.Update(ctx, "counter", counterUpdate))
			}
		}()
	}
	wg.Wait()

	got, err := a.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(2*perHandle), string(got))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	testStoreContract(t, m)

	require.NoError(t, m.Close())
	_, err := m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Set(context.Background(), "k", nil), ErrClosed)
	assert.ErrorIs(t, m.Update(context.Background(), "k", counterUpdate), ErrClosed)
}

func TestMemory_ConcurrentUpdates(t *testing.T) {
	m := NewMemory()
	testConcurrentUpdates(t, m, m)
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	v := []byte("abc")
	require.NoError(t, m.Set(context.Background(), "k", v))
	v[0] = 'x'

	got, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer s.Close()

	testStoreContract(t, s)
}

func TestSQLite_UpdatesFromTwoHandlesAreSerialized(t *testing.T) {
	// Two handles on one file behave like the server and the CLI.
	path := filepath.Join(t.TempDir(), "queue.db")
	a, err := OpenSQLite(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSQLite(path)
	require.NoError(t, err)
	defer b.Close()

	testConcurrentUpdates(t, a, b)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "queue.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "contact_messages", []byte(`[{"id":"1"}]`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(context.Background(), "contact_messages")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1"}]`, string(got))
}

func TestRedis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis test")
	}
	r, err := NewRedis(url)
	require.NoError(t, err)
	defer r.Close()

	testStoreContract(t, r)

	other, err := NewRedis(url)
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, r.Delete(context.Background(), "counter"))
	testConcurrentUpdates(t, r, other)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{"memory", BackendMemory, false},
		{"sqlite", BackendSQLite, false},
		{"default is sqlite", "", false},
		{"unknown", "etcd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.backend, filepath.Join(t.TempDir(), "q.db"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}

func TestNewRedis_RequiresURL(t *testing.T) {
	_, err := NewRedis("")
	assert.Error(t, err)
}
