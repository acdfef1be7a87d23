// Package resolve turns storage listings into the list of work units to process.
//
// A work unit is one paired-end sample: the `_1` and `_2` FASTQ files sharing
// a filename prefix. Units whose output already exists under the siz/ prefix
// are filtered out unless the caller asks to ignore that evidence.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sizerbatch/internal/storage"
)

// Fixed filename markers. These are the on-bucket contract with the sizer
// container and the upstream sequencing delivery layout.
const (
	SuffixR1         = "_1.fastq.gz"
	SuffixR2         = "_2.fastq.gz"
	CompletionMarker = "_chunk"

	rawSegment = "/raw/"
	sizSegment = "/siz/"
)

// WorkUnit is one paired-input job to execute. Immutable once constructed.
type WorkUnit struct {
	ID     string
	FastQ1 string // s3 URI of the first read file
	FastQ2 string // s3 URI of the second read file
	OutDir string // s3 URI of the output directory, trailing slash included
}

// Options controls resolution behavior.
type Options struct {
	OutDir         string // explicit output directory; overrides per-unit derivation
	IgnoreExisting bool   // include units even when siz/ evidence says they are done
}

// Resolver builds work units from raw and siz prefix listings.
type Resolver struct {
	lister storage.Lister
	logger *slog.Logger
}

// New creates a resolver over the given lister.
func New(lister storage.Lister) *Resolver {
	return &Resolver{
		lister: lister,
		logger: slog.With("component", "resolver"),
	}
}

// Resolve lists the delivery's raw/ and siz/ prefixes and pairs the results.
// A raw/ listing failure is fatal; a siz/ listing failure is treated as zero
// existing outputs.
func (r *Resolver) Resolve(ctx context.Context, bucket, delivery string, opts Options) ([]WorkUnit, error) {
	rawPrefix := fmt.Sprintf("s3://%s/%s/raw/", bucket, delivery)
	sizPrefix := fmt.Sprintf("s3://%s/%s/siz/", bucket, delivery)

	rawFiles, err := r.lister.List(ctx, rawPrefix, false)
	if err != nil {
		return nil, err
	}

	sizFiles, err := r.lister.List(ctx, sizPrefix, true)
	if err != nil {
		// The lister contract says allowMissing suppresses errors; treat a
		// violation the same way and continue with no completion evidence.
		r.logger.Warn("Ignoring siz listing failure", "prefix", sizPrefix, "error", err)
		sizFiles = nil
	}

	return r.pair(rawPrefix, rawFiles, sizFiles, opts), nil
}

// pairedReads collects the two role slots for one candidate id.
type pairedReads struct {
	r1 string
	r2 string
}

// pair matches raw filenames into units, in first-discovery order.
//
// Duplicate filenames for the same (id, role) overwrite the earlier entry.
// That mirrors the associative step of the layout contract; it is logged so
// the overwrite is never silent.
func (r *Resolver) pair(rawPrefix string, rawFiles, sizFiles []string, opts Options) []WorkUnit {
	reads := make(map[string]*pairedReads)
	order := []string{}

	for _, f := range rawFiles {
		var id, role string
		switch {
		case strings.HasSuffix(f, SuffixR1):
			id, role = strings.TrimSuffix(f, SuffixR1), "R1"
		case strings.HasSuffix(f, SuffixR2):
			id, role = strings.TrimSuffix(f, SuffixR2), "R2"
		default:
			// Not a paired read file (index files, manifests, etc).
			continue
		}

		pr, seen := reads[id]
		if !seen {
			pr = &pairedReads{}
			reads[id] = pr
			order = append(order, id)
		}

		uri := rawPrefix + f
		switch role {
		case "R1":
			if pr.r1 != "" {
				r.logger.Warn("Duplicate read file for id, keeping later entry", "id", id, "role", role)
			}
			pr.r1 = uri
		case "R2":
			if pr.r2 != "" {
				r.logger.Warn("Duplicate read file for id, keeping later entry", "id", id, "role", role)
			}
			pr.r2 = uri
		}
	}

	completed := map[string]bool{}
	if !opts.IgnoreExisting {
		for _, f := range sizFiles {
			if before, _, found := strings.Cut(f, CompletionMarker); found {
				completed[before] = true
			}
		}
	}

	units := []WorkUnit{}
	for _, id := range order {
		if completed[id] {
			continue
		}

		pr := reads[id]
		if pr.r1 == "" || pr.r2 == "" {
			r.logger.Warn("Incomplete pair, skipping", "id", id)
			continue
		}

		outDir := opts.OutDir
		if outDir == "" {
			outDir = InferOutputDir(pr.r1)
		}

		units = append(units, WorkUnit{
			ID:     id,
			FastQ1: pr.r1,
			FastQ2: pr.r2,
			OutDir: outDir,
		})
	}

	return units
}

// InferOutputDir derives a unit's output directory from its first read path:
// the raw/ segment becomes siz/ and the filename is dropped, trailing slash
// kept. Pure string transform, no storage access.
func InferOutputDir(fastqPath string) string {
	outDir := strings.ReplaceAll(fastqPath, rawSegment, sizSegment)
	if idx := strings.LastIndex(outDir, "/"); idx >= 0 {
		outDir = outDir[:idx+1]
	}
	return outDir
}
