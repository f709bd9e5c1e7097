// ABOUTME: Tests for the flat-file document store
// ABOUTME: Covers validation order, extension policies, trimming and not-found handling

package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, policy Policy) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data"), policy)
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, s *Store, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), name), []byte(content), 0644))
}

func TestCreate_EmptyExtension(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)

	for _, name := range []string{"notes", "notes.", "  notes  ", "a.b."} {
		_, err := s.Create(ctx, name, nil)
		assert.ErrorIs(t, err, ErrInvalidExtension, "name %q", name)
	}

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := s.Create(ctx, name, nil)
		assert.ErrorIs(t, err, ErrEmptyName, "name %q", name)
	}

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names, "failed creates must not write files")
}

func TestCreate_StrictPolicy(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)

	_, err := s.Create(ctx, "image.png", nil)
	assert.ErrorIs(t, err, ErrInvalidExtension)

	name, err := s.Create(ctx, "about.md", []byte("# Title"))
	require.NoError(t, err)
	assert.Equal(t, "about.md", name)

	name, err = s.Create(ctx, "changes.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "changes.txt", name)

	assert.Equal(t, "File must have extension .txt or .md", s.Policy().Message())
}

func TestCreate_AnyPolicy(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyAny)

	name, err := s.Create(ctx, "config.json", []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "config.json", name)

	doc, err := s.Read(ctx, "config.json")
	require.NoError(t, err)
	assert.Equal(t, KindPlainText, doc.Kind)
	assert.Equal(t, "json", doc.Extension)

	_, err = s.Create(ctx, "noext", nil)
	assert.ErrorIs(t, err, ErrInvalidExtension)

	assert.Equal(t, "File must have an extension.", s.Policy().Message())
}

func TestCreate_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)

	_, err := s.Create(ctx, "changes.txt", []byte("original"))
	require.NoError(t, err)

	_, err = s.Create(ctx, "changes.txt", []byte("replacement"))
	assert.ErrorIs(t, err, ErrDuplicateName)

	doc, err := s.Read(ctx, "changes.txt")
	require.NoError(t, err)
	assert.Equal(t, "original", string(doc.Content), "content must be unchanged")
}

func TestCreate_TrimsBeforeDuplicateCheck(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)

	name, err := s.Create(ctx, "  new.txt  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "new.txt", name)
	assert.True(t, s.Exists(ctx, "new.txt"))

	_, err = s.Create(ctx, "new.txt", nil)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestCreate_ValidationOrder(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)
	writeFile(t, s, "exists.txt", "x")

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty beats everything", "   ", ErrEmptyName},
		{"extension before duplicate", "exists", ErrInvalidExtension},
		{"policy before duplicate", "exists.png", ErrInvalidExtension},
		{"duplicate", " exists.txt", ErrDuplicateName},
		{"path separator", "../escape.txt", ErrInvalidName},
		{"nested path", "sub/dir.md", ErrInvalidName},
		{"hidden file", ".secret.txt", ErrInvalidName},
		{"nul byte", "bad\x00name.txt", ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.input, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"exists.txt"}, names)
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)
	writeFile(t, s, "about.md", "# Title")
	writeFile(t, s, "changes.txt", "hello")

	doc, err := s.Read(ctx, "about.md")
	require.NoError(t, err)
	assert.Equal(t, KindMarkdown, doc.Kind)
	assert.Equal(t, "md", doc.Extension)
	assert.Equal(t, "# Title", string(doc.Content))

	doc, err = s.Read(ctx, "changes.txt")
	require.NoError(t, err)
	assert.Equal(t, KindPlainText, doc.Kind)
	assert.Equal(t, "hello", string(doc.Content))

	_, err = s.Read(ctx, "missing.ext")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Read(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)
	writeFile(t, s, "b.txt", "")
	writeFile(t, s, "a.md", "")
	writeFile(t, s, ".hidden", "")
	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "subdir"), 0755))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.txt"}, names)

	// List reflects the directory at call time
	writeFile(t, s, "c.txt", "")
	names, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.txt", "c.txt"}, names)
}

func TestList_MissingDirectory(t *testing.T) {
	s := setupTestStore(t, PolicyStrict)
	require.NoError(t, os.RemoveAll(s.Dir()))

	_, err := s.List(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)
	writeFile(t, s, "changes.txt", "old")

	require.NoError(t, s.Update(ctx, "changes.txt", []byte("new")))

	doc, err := s.Read(ctx, "changes.txt")
	require.NoError(t, err)
	assert.Equal(t, "new", string(doc.Content))

	err = s.Update(ctx, "missing.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, s.Exists(ctx, "missing.txt"), "update must not create documents")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, PolicyStrict)
	writeFile(t, s, "changes.txt", "hello")

	require.NoError(t, s.Delete(ctx, "changes.txt"))
	assert.False(t, s.Exists(ctx, "changes.txt"))

	err := s.Delete(ctx, "changes.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Delete(ctx, "../outside.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParsePolicy("any")
	require.NoError(t, err)
	assert.Equal(t, PolicyAny, p)

	_, err = ParsePolicy("loose")
	assert.Error(t, err)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "md", Extension("about.md"))
	assert.Equal(t, "gz", Extension("archive.tar.gz"))
	assert.Equal(t, "", Extension("notes."))
	assert.Equal(t, "", Extension("notes"))
}
