package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
)

// Table is a raw tabular source: a header row and string cells. Every row
// has exactly len(Header) cells.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
}

// ReadFile opens path and parses it as CSV.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", apperrors.ErrCorpus, path, err)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Source = path
	return t, nil
}

// ReadTable parses CSV from r. The first record is the header. Rows whose
// field count differs from the header make the whole source malformed.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: source is empty", apperrors.ErrCorpus)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", apperrors.ErrCorpus, err)
	}

	t := &Table{Header: dedupeHeader(header)}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrCorpus, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Column returns the position of the header named name, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// dedupeHeader suffixes repeated header names with ".1", ".2", ... so every
// column is addressable by name. The first occurrence keeps its name.
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		n, dup := seen[h]
		if !dup {
			seen[h] = 0
			out[i] = h
			continue
		}
		for {
			n++
			candidate := h + "." + strconv.Itoa(n)
			if _, taken := seen[candidate]; !taken {
				seen[h] = n
				seen[candidate] = 0
				out[i] = candidate
				break
			}
		}
	}
	return out
}
