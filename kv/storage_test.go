package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	t.Run("case-insensitive lookup", func(t *testing.T) {
		s := New().Add("Content-Type", "text/html")
		value, found := s.Get("content-type")
		require.True(t, found)
		require.Equal(t, "text/html", value)
		require.True(t, s.Has("CONTENT-TYPE"))
	})

	t.Run("duplicates preserved in order", func(t *testing.T) {
		s := New().
			Add("Accept", "text/html").
			Add("Host", "localhost").
			Add("accept", "application/json")
		require.Equal(t, []string{"text/html", "application/json"}, s.Values("Accept"))
		require.Equal(t, "text/html", s.Value("Accept"))
		require.Equal(t, 3, s.Len())
	})

	t.Run("missing key", func(t *testing.T) {
		s := New()
		require.Equal(t, "", s.Value("nonexistent"))
		require.Equal(t, "fallback", s.ValueOr("nonexistent", "fallback"))
		require.Nil(t, s.Values("nonexistent"))
		require.True(t, s.Empty())
	})

	t.Run("iter keeps insertion order", func(t *testing.T) {
		s := NewFromMap(map[string][]string{"a": {"1", "2"}})
		var values []string
		for _, value := range s.Iter() {
			values = append(values, value)
		}
		require.Equal(t, []string{"1", "2"}, values)
	})

	t.Run("clear retains capacity", func(t *testing.T) {
		s := NewPrealloc(4).Add("a", "b")
		s.Clear()
		require.True(t, s.Empty())
		require.Empty(t, s.Expose())
	})
}
