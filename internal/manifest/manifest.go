// Package manifest persists the resolved work list as a sample sheet CSV.
//
// The sheet has columns id,fastq_1,fastq_2,outdir, one row per work unit.
// A previously written sheet can be loaded to skip live resolution entirely.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"sizerbatch/internal/resolve"
)

var header = []string{"id", "fastq_1", "fastq_2", "outdir"}

// Write writes units to a sample sheet at path, overwriting any existing file.
func Write(path string, units []resolve.WorkUnit) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	if err := writeTo(f, units); err != nil {
		return err
	}
	return f.Close()
}

func writeTo(w io.Writer, units []resolve.WorkUnit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	for _, u := range units {
		if err := cw.Write([]string{u.ID, u.FastQ1, u.FastQ2, u.OutDir}); err != nil {
			return fmt.Errorf("failed to write manifest row for %s: %w", u.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads a sample sheet from path.
func Load(path string) ([]resolve.WorkUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return readFrom(f)
}

func readFrom(r io.Reader) ([]resolve.WorkUnit, error) {
	cr := csv.NewReader(r)

	head, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("manifest is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range head {
		cols[name] = i
	}
	for _, name := range header {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("manifest missing column %q", name)
		}
	}

	units := []resolve.WorkUnit{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest row: %w", err)
		}
		units = append(units, resolve.WorkUnit{
			ID:     row[cols["id"]],
			FastQ1: row[cols["fastq_1"]],
			FastQ2: row[cols["fastq_2"]],
			OutDir: row[cols["outdir"]],
		})
	}
	return units, nil
}
