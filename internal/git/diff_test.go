package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameStatus(t *testing.T) {
	t.Parallel()

	t.Run("basic statuses", func(t *testing.T) {
		t.Parallel()
		out := []byte("A\x00a.md\x00M\x00dir/b.md\x00D\x00c.md\x00T\x00d.md\x00")
		records, err := parseNameStatus(out)
		require.NoError(t, err)
		assert.Equal(t, []ChangeRecord{
			{Kind: Added, Path: "a.md"},
			{Kind: Modified, Path: "dir/b.md"},
			{Kind: Deleted, Path: "c.md"},
			{Kind: Modified, Path: "d.md"},
		}, records)
	})

	t.Run("rename keeps new path only", func(t *testing.T) {
		t.Parallel()
		out := []byte("R100\x00old.md\x00new.md\x00")
		records, err := parseNameStatus(out)
		require.NoError(t, err)
		assert.Equal(t, []ChangeRecord{{Kind: Renamed, Path: "new.md"}}, records)
	})

	t.Run("copy is an add of the destination", func(t *testing.T) {
		t.Parallel()
		out := []byte("C075\x00src.md\x00dst.md\x00")
		records, err := parseNameStatus(out)
		require.NoError(t, err)
		assert.Equal(t, []ChangeRecord{{Kind: Added, Path: "dst.md"}}, records)
	})

	t.Run("paths with spaces and newlines survive", func(t *testing.T) {
		t.Parallel()
		out := []byte("A\x00my notes/line\nbreak.md\x00")
		records, err := parseNameStatus(out)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "my notes/line\nbreak.md", records[0].Path)
	})

	t.Run("empty output", func(t *testing.T) {
		t.Parallel()
		records, err := parseNameStatus(nil)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("unmerged status is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := parseNameStatus([]byte("U\x00x.md\x00"))
		require.ErrorIs(t, err, ErrUnsupportedStatus)
	})

	t.Run("truncated rename", func(t *testing.T) {
		t.Parallel()
		_, err := parseNameStatus([]byte("R100\x00old.md"))
		require.Error(t, err)
	})
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"a.md":          "a.md",
		"./a.md":        "a.md",
		"dir//b.md":     "dir/b.md",
		"dir/../c.md":   "c.md",
		"/abs/d.md":     "abs/d.md",
		".":             "",
		"nested/./e.md": "nested/e.md",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePath(in), "input %q", in)
	}
}

func TestRevisionID(t *testing.T) {
	t.Parallel()

	assert.True(t, RevisionID("").IsZero())
	assert.Equal(t, "none", RevisionID("").Short())
	assert.Equal(t, "abc", RevisionID("abc").Short())
	assert.Equal(t, "0123abcd", RevisionID("0123abcdef456789").Short())
	assert.Equal(t, "renamed", Renamed.String())
	assert.Equal(t, "unknown", ChangeKind(42).String())
}
