package corpus_test

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/neardup/pkg/corpus"
)

const testDir = "/docs"

func writeDocs(t *testing.T, fs afero.Fs, ids ...int) {
	t.Helper()

	require.NoError(t, fs.MkdirAll(testDir, 0o755))

	for _, id := range ids {
		path := filepath.Join(testDir, strconv.Itoa(id)+corpus.Extension)
		require.NoError(t, afero.WriteFile(fs, path, []byte("doc "+strconv.Itoa(id)), 0o644))
	}
}

func TestPath_UsesOffset(t *testing.T) {
	t.Parallel()

	c, err := corpus.New(afero.NewMemMapFs(), "/data", 40)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/data", "42.txt"), c.Path(2))
	assert.Equal(t, 42, c.ID(2))
	assert.Equal(t, 40, c.Offset())
	assert.Equal(t, "/data", c.Dir())
}

func TestNew_NegativeOffset(t *testing.T) {
	t.Parallel()

	_, err := corpus.New(afero.NewMemMapFs(), "/data", -1)

	require.ErrorIs(t, err, corpus.ErrNegativeOffset)
}

func TestOpen_ReadsDocument(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeDocs(t, fs, 10, 11)

	c, err := corpus.New(fs, testDir, 10)
	require.NoError(t, err)

	rc, err := c.Open(1)
	require.NoError(t, err)

	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "doc 11", string(data))
}

func TestOpen_MissingDocument(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeDocs(t, fs, 10)

	c, err := corpus.New(fs, testDir, 10)
	require.NoError(t, err)

	_, err = c.Open(3)

	var docErr *corpus.DocumentError
	require.ErrorAs(t, err, &docErr)
	assert.Equal(t, c.Path(3), docErr.Path)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "13.txt")
}

func TestDiscover_CountsConsecutive(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeDocs(t, fs, 10, 11, 12, 14)

	c, err := corpus.New(fs, testDir, 10)
	require.NoError(t, err)

	n, err := c.Discover()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDiscover_Empty(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(testDir, 0o755))

	c, err := corpus.New(fs, testDir, 0)
	require.NoError(t, err)

	n, err := c.Discover()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStat_Errors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/file", []byte("x"), 0o644))

	missing, err := corpus.New(fs, "/missing", 0)
	require.NoError(t, err)
	require.ErrorIs(t, missing.Stat(), os.ErrNotExist)

	file, err := corpus.New(fs, "/file", 0)
	require.NoError(t, err)
	require.ErrorIs(t, file.Stat(), corpus.ErrNotDirectory)
}
