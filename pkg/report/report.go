// Package report writes and merges similarity reports.
//
// A report is CSV with the header "doc1,doc2,similarity" followed by one
// line per reported pair, similarity formatted with four decimals.
package report

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Sumatoshi-tech/neardup/pkg/compare"
)

// Header is the first line of every report.
const Header = "doc1,doc2,similarity"

// similarityPrecision is the number of decimals written for similarity.
const similarityPrecision = 4

// ErrBadHeader is returned when a partial report does not start with Header.
var ErrBadHeader = errors.New("report: unexpected header")

// Writer streams records into a report.
type Writer struct {
	csv   *csv.Writer
	count int64
	row   [3]string
}

// NewWriter writes the header to w and returns a record writer.
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)

	err := cw.Write([]string{"doc1", "doc2", "similarity"})
	if err != nil {
		return nil, fmt.Errorf("report: write header: %w", err)
	}

	return &Writer{csv: cw}, nil
}

// Write appends one record.
func (w *Writer) Write(rec compare.Record) error {
	w.row[0] = strconv.Itoa(rec.Doc1)
	w.row[1] = strconv.Itoa(rec.Doc2)
	w.row[2] = FormatSimilarity(rec.Similarity)

	err := w.csv.Write(w.row[:])
	if err != nil {
		return fmt.Errorf("report: write record: %w", err)
	}

	w.count++

	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int64 { return w.count }

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	w.csv.Flush()

	err := w.csv.Error()
	if err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}

	return nil
}

// FormatSimilarity renders a similarity the way reports store it.
func FormatSimilarity(sim float64) string {
	return strconv.FormatFloat(sim, 'f', similarityPrecision, 64)
}

// Merge writes the header once to dst followed by the records of every part,
// in the order given. A part may be empty or hold only the header.
// It returns the number of records written.
func Merge(dst io.Writer, parts ...io.Reader) (int64, error) {
	bw := bufio.NewWriter(dst)

	_, err := bw.WriteString(Header + "\n")
	if err != nil {
		return 0, fmt.Errorf("report: write header: %w", err)
	}

	var records int64

	for i, part := range parts {
		n, partErr := appendPart(bw, part)
		records += n

		if partErr != nil {
			return records, fmt.Errorf("report: part %d: %w", i, partErr)
		}
	}

	err = bw.Flush()
	if err != nil {
		return records, fmt.Errorf("report: flush: %w", err)
	}

	return records, nil
}

func appendPart(w *bufio.Writer, part io.Reader) (int64, error) {
	sc := bufio.NewScanner(part)

	if !sc.Scan() {
		return 0, sc.Err()
	}

	if sc.Text() != Header {
		return 0, fmt.Errorf("%w: %q", ErrBadHeader, sc.Text())
	}

	var records int64

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		_, err := w.Write(line)
		if err != nil {
			return records, err
		}

		err = w.WriteByte('\n')
		if err != nil {
			return records, err
		}

		records++
	}

	return records, sc.Err()
}
