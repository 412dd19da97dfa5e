package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/grocer-offers/internal/domain/offer"
)

const (
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineSize   = 1 << 20
)

// offerWriter persists imported offers. It must be safe for concurrent use.
type offerWriter interface {
	Upsert(ctx context.Context, o *offer.Offer) error
}

// importStats summarises an import run.
type importStats struct {
	Read      int
	Skipped   int
	Written   int
	Shared    int
	Retailers []string
}

// fileResult holds what pass 2 found in a single file.
type fileResult struct {
	read, skipped, written int
	// shared holds the newest version of every offer whose id also appears
	// in another file. They are written after all files are scanned.
	shared map[string]offer.Offer
}

// importer loads offers from gzip-compressed NDJSON exports.
//
// Exports overlap: the same offer may be present in several files with
// different revisions. Pass 1 builds a bloom filter of the ids in each file.
// Pass 2 writes offers unique to their file straight away and holds back
// only the ones another file may also contain, so the newest revision wins
// without keeping every record in memory.
type importer struct {
	w        offerWriter
	capacity uint

	mu        sync.Mutex
	retailers map[string]struct{}
}

func newImporter(w offerWriter, capacity uint) *importer {
	return &importer{
		w:         w,
		capacity:  max(capacity, 1),
		retailers: map[string]struct{}{},
	}
}

func (im *importer) run(ctx context.Context, files []string) (importStats, error) {
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return importStats{}, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: writing offers")

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			res, err := im.scanFile(gctx, i, f, filters)
			if err != nil {
				return errors.Wrapf(err, "scan %s", f)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return importStats{}, err
	}

	// Later files win ties on updatedAt.
	merged := map[string]offer.Offer{}
	var stats importStats
	for _, r := range results {
		stats.Read += r.read
		stats.Skipped += r.skipped
		stats.Written += r.written
		for id, o := range r.shared {
			if prev, ok := merged[id]; ok && o.UpdatedAt.Before(prev.UpdatedAt) {
				continue
			}
			merged[id] = o
		}
	}

	slog.Info("writing shared offers", slog.Int("count", len(merged)))
	for id := range merged {
		o := merged[id]
		if err := im.write(ctx, &o); err != nil {
			return importStats{}, err
		}
		stats.Written++
	}
	stats.Shared = len(merged)

	im.mu.Lock()
	for id := range im.retailers {
		stats.Retailers = append(stats.Retailers, id)
	}
	im.mu.Unlock()

	return stats, nil
}

// buildFilters creates one bloom filter of offer ids per file, concurrently.
func (im *importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(im.capacity, bloomFPR)
			var count int
			err := streamGzLines(ctx, f, func(_ int, line []byte) error {
				id, err := offerID(line)
				if err != nil || id == "" {
					// Reported by pass 2.
					return nil
				}
				filter.AddString(id)
				count++
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", f)
			}

			slog.Info("pass 1 complete", slog.String("file", f), slog.Int("ids", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func (im *importer) scanFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (fileResult, error) {
	res := fileResult{shared: map[string]offer.Offer{}}
	// Revision of every offer already written from this file.
	written := map[string]time.Time{}

	err := streamGzLines(ctx, path, func(n int, line []byte) error {
		res.read++
		if res.read%progressEvery == 0 {
			slog.Info("pass 2 progress", slog.String("file", path), slog.Int("lines", res.read))
		}

		// Absent keys keep the column defaults.
		o := offer.Offer{IsCheapestFree: true}
		if err := json.Unmarshal(line, &o); err != nil {
			res.skipped++
			slog.Warn("skipping undecodable line", slog.String("file", path), slog.Int("line", n), slog.String("error", err.Error()))
			return nil
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if err := o.Validate(); err != nil {
			res.skipped++
			slog.Warn("skipping invalid offer", slog.String("file", path), slog.Int("line", n), slog.String("error", err.Error()))
			return nil
		}

		if inOtherFile(filters, idx, o.ID) {
			if prev, ok := res.shared[o.ID]; !ok || !o.UpdatedAt.Before(prev.UpdatedAt) {
				res.shared[o.ID] = o
			}
			return nil
		}

		if prev, ok := written[o.ID]; ok && o.UpdatedAt.Before(prev) {
			return nil
		}
		if err := im.write(ctx, &o); err != nil {
			return err
		}
		written[o.ID] = o.UpdatedAt
		res.written++
		return nil
	})
	if err != nil {
		return fileResult{}, err
	}

	slog.Info("pass 2 complete",
		slog.String("file", path),
		slog.Int("lines", res.read),
		slog.Int("written", res.written),
		slog.Int("shared", len(res.shared)),
		slog.Int("skipped", res.skipped),
	)
	return res, nil
}

func (im *importer) write(ctx context.Context, o *offer.Offer) error {
	if err := im.w.Upsert(ctx, o); err != nil {
		return errors.Wrapf(err, "upsert offer %s", o.ID)
	}
	im.mu.Lock()
	im.retailers[o.RetailerID] = struct{}{}
	im.mu.Unlock()
	return nil
}

// inOtherFile reports whether id may appear in a file other than idx.
func inOtherFile(filters []*bloom.BloomFilter, idx int, id string) bool {
	for j, f := range filters {
		if j != idx && f.TestString(id) {
			return true
		}
	}
	return false
}

// offerID extracts the top-level "id" of an NDJSON record without decoding
// the rest of it.
func offerID(line []byte) (string, error) {
	var id string
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "id" || d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		id = v
		return err
	})
	return id, err
}

// streamGzLines opens a gzip-compressed file and calls fn for each non-empty
// line with its 1-based line number.
func streamGzLines(ctx context.Context, path string, fn func(n int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		n++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
