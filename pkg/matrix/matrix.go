// Copy-number matrix: samples x genomic features, categorical states.

package matrix

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// Matrix is the immutable backing table for one reconstruction run. Rows are
// samples, columns are genomic features, and every cell holds the code of a
// categorical copy-number state. Clones reference rows by index so the table
// is never sliced or copied per clone.
type Matrix struct {
	sampleIDs []string
	features  []string
	codes     [][]int
	labels    []string // code -> original state label, e.g. "-2" .. "3+"
}

// New builds a matrix from already-encoded codes. Codes must be in
// [0, len(labels)) and every row must have one value per feature.
func New(sampleIDs, features []string, codes [][]int, labels []string) (*Matrix, error) {
	if len(sampleIDs) == 0 {
		return nil, fmt.Errorf("matrix: no samples")
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("matrix: no features")
	}
	if len(codes) != len(sampleIDs) {
		return nil, fmt.Errorf("matrix: %d rows for %d samples", len(codes), len(sampleIDs))
	}

	seen := make(map[string]bool, len(sampleIDs))
	for _, id := range sampleIDs {
		if seen[id] {
			return nil, fmt.Errorf("matrix: duplicate sample id %q", id)
		}
		seen[id] = true
	}

	for i, row := range codes {
		if len(row) != len(features) {
			return nil, fmt.Errorf("matrix: row %d has %d values, want %d", i, len(row), len(features))
		}
		for j, c := range row {
			if c < 0 || c >= len(labels) {
				return nil, fmt.Errorf("matrix: code %d out of range at (%d,%d)", c, i, j)
			}
		}
	}

	return &Matrix{
		sampleIDs: sampleIDs,
		features:  features,
		codes:     codes,
		labels:    labels,
	}, nil
}

// Load reads a CSV file whose first column is the sample id and whose header
// names the features. The state alphabet is inferred from the observed
// values, ordered numerically where the labels parse as numbers (so "-2"
// sorts before "0" and "3+" after "2").
func Load(path string) (*Matrix, error) {

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("matrix: parsing %s: %w", path, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("matrix: %s has no data rows", path)
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("matrix: %s has no feature columns", path)
	}
	features := header[1:]

	// First pass: collect the observed alphabet.
	observed := make(map[string]bool)
	for _, rec := range records[1:] {
		for _, v := range rec[1:] {
			observed[v] = true
		}
	}
	labels := sortStateLabels(observed)
	codeOf := make(map[string]int, len(labels))
	for c, l := range labels {
		codeOf[l] = c
	}

	sampleIDs := make([]string, 0, len(records)-1)
	codes := make([][]int, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("matrix: row %d has %d fields, want %d", i+1, len(rec), len(header))
		}
		sampleIDs = append(sampleIDs, rec[0])
		row := make([]int, len(features))
		for j, v := range rec[1:] {
			row[j] = codeOf[v]
		}
		codes = append(codes, row)
	}

	return New(sampleIDs, features, codes, labels)
}

// sortStateLabels orders copy-number labels numerically when possible.
// Labels with a trailing "+" (capped states like "3+") sort by their numeric
// prefix; anything unparseable sorts lexically after the numeric ones.
func sortStateLabels(set map[string]bool) []string {
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		vi, oki := stateValue(labels[i])
		vj, okj := stateValue(labels[j])
		if oki && okj {
			if vi != vj {
				return vi < vj
			}
			return labels[i] < labels[j]
		}
		if oki != okj {
			return oki
		}
		return labels[i] < labels[j]
	})
	return labels
}

func stateValue(label string) (float64, bool) {
	s := label
	if len(s) > 1 && s[len(s)-1] == '+' {
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NSamples returns the number of rows.
func (m *Matrix) NSamples() int { return len(m.sampleIDs) }

// NFeatures returns the number of genomic features.
func (m *Matrix) NFeatures() int { return len(m.features) }

// NStates returns the size of the state alphabet.
func (m *Matrix) NStates() int { return len(m.labels) }

// At returns the encoded state of sample i at feature j.
func (m *Matrix) At(i, j int) int { return m.codes[i][j] }

// SampleID returns the identifier of row i.
func (m *Matrix) SampleID(i int) string { return m.sampleIDs[i] }

// SampleIDs returns all row identifiers in row order.
func (m *Matrix) SampleIDs() []string {
	out := make([]string, len(m.sampleIDs))
	copy(out, m.sampleIDs)
	return out
}

// Features returns the feature names in column order.
func (m *Matrix) Features() []string {
	out := make([]string, len(m.features))
	copy(out, m.features)
	return out
}

// Label decodes a state code back to its original label.
func (m *Matrix) Label(code int) string { return m.labels[code] }
