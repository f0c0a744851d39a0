// Text export of a finished run: newick tree, assignment table, clone
// summary.

package render

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/dpeerlab/picasso/pkg/matrix"
	"github.com/dpeerlab/picasso/pkg/model"
)

// WriteNewick writes the phylogeny in newick format followed by a newline.
func WriteNewick(w io.Writer, res *model.Result) error {
	_, err := fmt.Fprintln(w, res.Root.Newick())
	return err
}

// WriteAssignmentsTSV writes one sample per line in matrix row order.
func WriteAssignmentsTSV(w io.Writer, m *matrix.Matrix, res *model.Result) error {
	if _, err := fmt.Fprintln(w, "sample_id\tclone_id"); err != nil {
		return err
	}
	for _, id := range m.SampleIDs() {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", id, res.Assignments[id]); err != nil {
			return err
		}
	}
	return nil
}

// WriteCloneSummary writes one terminal clone per line with depth and size.
func WriteCloneSummary(w io.Writer, res *model.Result) error {
	if _, err := fmt.Fprintln(w, "clone_id\tdepth\tn_samples"); err != nil {
		return err
	}
	for _, c := range res.Terminal {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\n", c.ID, c.Depth, c.Size()); err != nil {
			return err
		}
	}
	return nil
}

// ExportRun writes the three run artifacts into dir.
func ExportRun(dir string, m *matrix.Matrix, res *model.Result) error {

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"phylogeny.nwk", func(w io.Writer) error { return WriteNewick(w, res) }},
		{"clone_assignments.tsv", func(w io.Writer) error { return WriteAssignmentsTSV(w, m, res) }},
		{"clone_summary.tsv", func(w io.Writer) error { return WriteCloneSummary(w, res) }},
	}

	for _, f := range files {
		fh, err := os.Create(path.Join(dir, f.name))
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		if err := f.write(fh); err != nil {
			fh.Close()
			return fmt.Errorf("render: writing %s: %w", f.name, err)
		}
		if err := fh.Close(); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}
	return nil
}
