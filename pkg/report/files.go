package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/afero"
)

// PartPath returns the partial report path written by rank.
func PartPath(report string, rank int) string {
	return report + ".part-" + strconv.Itoa(rank)
}

// PartPaths returns the partial report paths of ranks [0, size).
func PartPaths(report string, size int) []string {
	paths := make([]string, size)
	for rank := range paths {
		paths[rank] = PartPath(report, rank)
	}

	return paths
}

// MergeFiles merges the partial reports into dst. A missing part is an error.
// When removeParts is set the parts are deleted after a successful merge.
func MergeFiles(fs afero.Fs, dst string, parts []string, removeParts bool) (int64, error) {
	readers := make([]io.Reader, 0, len(parts))
	files := make([]afero.File, 0, len(parts))

	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for _, path := range parts {
		f, err := fs.Open(path)
		if err != nil {
			return 0, fmt.Errorf("report: open part: %w", err)
		}

		files = append(files, f)
		readers = append(readers, f)
	}

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("report: create %s: %w", dst, err)
	}

	records, err := Merge(out, readers...)

	for _, f := range files {
		_ = f.Close()
	}

	files = nil

	closeErr := out.Close()
	if err != nil {
		return records, err
	}

	if closeErr != nil {
		return records, fmt.Errorf("report: close %s: %w", dst, closeErr)
	}

	if !removeParts {
		return records, nil
	}

	var errs []error
	for _, path := range parts {
		errs = append(errs, fs.Remove(path))
	}

	return records, errors.Join(errs...)
}
