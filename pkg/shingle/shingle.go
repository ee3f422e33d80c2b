// Package shingle turns a document's byte stream into overlapping k-word
// windows ("shingles").
//
// Words are whitespace-delimited tokens, lowercased and stripped of every byte
// outside [a-z0-9]. Tokens left empty by stripping are skipped and never
// produce empty shingles.
package shingle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	// Separator joins the words of a shingle.
	Separator = ' '

	// MaxTokenSize bounds a single whitespace-delimited token.
	MaxTokenSize = 1 << 20

	// initialBufferSize is the starting capacity of the word scanner buffer.
	initialBufferSize = 64 << 10
)

// ErrInvalidSize is returned when the shingle size is not positive.
var ErrInvalidSize = errors.New("shingle: size must be positive")

// Scanner yields the shingles of one document. It is lazy and cannot be
// restarted; the slice returned by Bytes is valid until the next call to Scan.
type Scanner struct {
	words  *bufio.Scanner
	size   int
	window [][]byte
	buf    []byte
	err    error
	done   bool
	count  int64
}

// NewScanner returns a scanner over r producing shingles of size words.
func NewScanner(r io.Reader, size int) (*Scanner, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	words := bufio.NewScanner(r)
	words.Buffer(make([]byte, 0, initialBufferSize), MaxTokenSize)
	words.Split(bufio.ScanWords)

	return &Scanner{
		words:  words,
		size:   size,
		window: make([][]byte, 0, size),
	}, nil
}

// Scan advances to the next shingle. It returns false at end of input or on
// a read error, which Err then reports.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}

	if len(s.window) == s.size {
		// Reuse the oldest word's storage for the incoming one.
		oldest := s.window[0]
		copy(s.window, s.window[1:])
		s.window[s.size-1] = oldest[:0]
		s.window = s.window[:s.size-1]
	}

	for len(s.window) < s.size {
		word, ok := s.nextWord()
		if !ok {
			s.done = true

			return false
		}

		s.window = append(s.window, word)
	}

	s.buf = s.buf[:0]

	for i, w := range s.window {
		if i > 0 {
			s.buf = append(s.buf, Separator)
		}

		s.buf = append(s.buf, w...)
	}

	s.count++

	return true
}

// Bytes returns the current shingle.
func (s *Scanner) Bytes() []byte {
	return s.buf
}

// Text returns the current shingle as a string.
func (s *Scanner) Text() string {
	return string(s.buf)
}

// Count returns the number of shingles produced so far.
func (s *Scanner) Count() int64 {
	return s.count
}

// Err returns the first non-EOF error encountered.
func (s *Scanner) Err() error {
	return s.err
}

// nextWord returns the next non-empty normalized word, reusing the storage of
// the slot about to be filled when there is one.
func (s *Scanner) nextWord() ([]byte, bool) {
	var dst []byte
	if n := len(s.window); n < cap(s.window) {
		dst = s.window[:n+1][n][:0]
	}

	for s.words.Scan() {
		word := Normalize(dst, s.words.Bytes())
		if len(word) > 0 {
			return word, true
		}
	}

	err := s.words.Err()
	if err != nil {
		s.err = fmt.Errorf("shingle: scan words: %w", err)
	}

	return nil, false
}

// Normalize appends the lowercased alphanumeric bytes of word to dst.
func Normalize(dst, word []byte) []byte {
	for _, c := range word {
		switch {
		case 'A' <= c && c <= 'Z':
			dst = append(dst, c+('a'-'A'))
		case 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			dst = append(dst, c)
		}
	}

	return dst
}
