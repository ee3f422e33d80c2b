// Package corpus resolves numbered documents under a directory.
//
// Document i of a run lives at <dir>/<offset+i>.txt. The corpus is immutable
// for the duration of a run; a document that cannot be opened aborts the run
// instead of being skipped, since skipping would shift every later index.
package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
)

// Extension is the file extension of every document.
const Extension = ".txt"

var (
	// ErrNotDirectory is returned when the corpus path is not a directory.
	ErrNotDirectory = errors.New("corpus: not a directory")

	// ErrNegativeOffset is returned for a negative document offset.
	ErrNegativeOffset = errors.New("corpus: offset must not be negative")
)

// DocumentError reports a document that could not be opened.
type DocumentError struct {
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("error opening file %s: %v", e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Corpus is a numbered document collection on a filesystem.
type Corpus struct {
	fs     afero.Fs
	dir    string
	offset int
}

// New returns a corpus rooted at dir whose first document is offset.
// A nil fs means the operating system filesystem.
func New(fs afero.Fs, dir string, offset int) (*Corpus, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}

	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Corpus{fs: fs, dir: dir, offset: offset}, nil
}

// Dir returns the corpus directory.
func (c *Corpus) Dir() string { return c.dir }

// Offset returns the id of document 0.
func (c *Corpus) Offset() int { return c.offset }

// ID returns the absolute id of document i.
func (c *Corpus) ID(i int) int { return c.offset + i }

// Path returns the file path of document i.
func (c *Corpus) Path(i int) string {
	return filepath.Join(c.dir, strconv.Itoa(c.ID(i))+Extension)
}

// Open opens document i. Failures are returned as *DocumentError.
func (c *Corpus) Open(i int) (io.ReadCloser, error) {
	path := c.Path(i)

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, &DocumentError{Path: path, Err: err}
	}

	return f, nil
}

// Stat checks that the corpus directory exists and is a directory.
func (c *Corpus) Stat() error {
	info, err := c.fs.Stat(c.dir)
	if err != nil {
		return fmt.Errorf("corpus: stat %s: %w", c.dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, c.dir)
	}

	return nil
}

// Discover counts the consecutive documents present from the offset onward.
func (c *Corpus) Discover() (int, error) {
	err := c.Stat()
	if err != nil {
		return 0, err
	}

	n := 0

	for {
		_, statErr := c.fs.Stat(c.Path(n))
		if errors.Is(statErr, os.ErrNotExist) {
			return n, nil
		}

		if statErr != nil {
			return 0, fmt.Errorf("corpus: stat %s: %w", c.Path(n), statErr)
		}

		n++
	}
}
