package manifest

import (
	"path/filepath"
	"strings"
	"testing"

	"sizerbatch/internal/resolve"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	t.Parallel()

	units := []resolve.WorkUnit{
		{
			ID:     "a",
			FastQ1: "s3://bucket/d/raw/a_1.fastq.gz",
			FastQ2: "s3://bucket/d/raw/a_2.fastq.gz",
			OutDir: "s3://bucket/d/siz/",
		},
		{
			ID:     "b",
			FastQ1: "s3://bucket/d/raw/b_1.fastq.gz",
			FastQ2: "s3://bucket/d/raw/b_2.fastq.gz",
			OutDir: "s3://other/dest/",
		},
	}

	path := filepath.Join(t.TempDir(), "sample_sheet.csv")
	if err := Write(path, units); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != len(units) {
		t.Fatalf("expected %d units, got %d", len(units), len(loaded))
	}
	for i := range units {
		if loaded[i] != units[i] {
			t.Errorf("row %d: got %+v, want %+v", i, loaded[i], units[i])
		}
	}
}

func TestLoadReordersColumnsByHeader(t *testing.T) {
	t.Parallel()

	csvData := "outdir,id,fastq_1,fastq_2\n" +
		"s3://bucket/d/siz/,a,s3://bucket/d/raw/a_1.fastq.gz,s3://bucket/d/raw/a_2.fastq.gz\n"

	units, err := readFrom(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("readFrom failed: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	if units[0].ID != "a" || units[0].OutDir != "s3://bucket/d/siz/" {
		t.Errorf("columns not mapped by header: %+v", units[0])
	}
}

func TestLoadRejectsMissingColumn(t *testing.T) {
	t.Parallel()

	csvData := "id,fastq_1,outdir\na,x,y\n"
	if _, err := readFrom(strings.NewReader(csvData)); err == nil {
		t.Fatal("expected error for missing fastq_2 column")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()

	if _, err := readFrom(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty manifest")
	}
}

func TestLoadHeaderOnly(t *testing.T) {
	t.Parallel()

	units, err := readFrom(strings.NewReader("id,fastq_1,fastq_2,outdir\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected empty work list, got %d units", len(units))
	}
}
