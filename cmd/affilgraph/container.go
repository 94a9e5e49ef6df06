// Streaming task runtime: per-file workers parse and interpret records,
// batches flow through a bounded channel, and a single writer goroutine owns
// the CSV files and the dedup index.
//
// Concurrency model:
//
//	N workers (one input file at a time: read → gunzip → parse → interpret)
//	     → bounded batch channel (back-pressure)
//	     → 1 writer (dedup + CSV append)
//
// Back-pressure keeps peak memory around O(workers × batchSize) regardless
// of input size. A fatal writer error cancels the context; workers stop
// producing and the channel drains.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"affilgraph/internal/datasource/file"
	"affilgraph/internal/emit"
	"affilgraph/internal/extract"
	"affilgraph/internal/output"
	"affilgraph/internal/profile"

	"golang.org/x/sync/errgroup"
)

// lineBufSize is the initial per-file read buffer. Single records can run to
// megabytes in Crossref dumps; bufio grows past this as needed.
const lineBufSize = 1 << 20

// errAggLimit caps how many sample messages an aggregator retains.
const errAggLimit = 3

// taskSpec contains everything one task run needs.
type taskSpec struct {
	name      string
	inputDir  string
	prof      *profile.Profile
	filters   map[string]string
	timestamp string
	writer    *output.Writer
	workers   int
	batchSize int
}

// counters holds cross-goroutine statistics for one task.
//
// All fields are updated atomically by the workers.
type counters struct {
	files       atomic.Int64 // input files fully processed
	fileErrors  atomic.Int64 // input files skipped (unreadable at open)
	lines       atomic.Int64 // input lines seen (including blanks)
	records     atomic.Int64 // records interpreted and emitted
	parseErrors atomic.Int64 // lines that failed JSON parsing
	missingID   atomic.Int64 // records skipped for a missing identifier
	filtered    atomic.Int64 // records dropped by a bound filter
	batches     atomic.Int64 // batches handed to the writer
}

// runTask executes one task: discover inputs, fan out workers, funnel
// batches into the shared writer. Once workers have started, the returned
// counters are valid even when err is non-nil; an input-discovery or
// filter-resolution error returns nil counters.
func runTask(ctx context.Context, spec taskSpec) (*counters, error) {
	files, err := file.Discover(spec.inputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		warnf("task %q: no *.jsonl or *.jsonl.gz files under %s", spec.name, spec.inputDir)
		return &counters{}, nil
	}

	active, err := spec.prof.ResolveFilters(spec.filters)
	if err != nil {
		return nil, err
	}
	interp := extract.NewInterpreter(spec.prof, active, spec.timestamp)

	infof("task %q: %d files, %d workers, batch size %d", spec.name, len(files), spec.workers, spec.batchSize)

	stats := &counters{}
	parseAgg := newErrAgg(errAggLimit)

	// The writer goroutine owns the CSV files for the duration of the task.
	// Its failure cancels the workers through wctx.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chanCap := spec.workers * 2
	if chanCap < 16 {
		chanCap = 16
	}
	batches := make(chan *emit.Batch, chanCap)
	writerDone := make(chan error, 1)
	go func() {
		var werr error
		for b := range batches {
			if werr != nil {
				continue // drain after failure
			}
			if err := spec.writer.WriteBatch(b); err != nil {
				werr = err
				cancel()
			}
		}
		writerDone <- werr
	}()

	filesCh := make(chan string)
	g, gctx := errgroup.WithContext(wctx)

	g.Go(func() error {
		defer close(filesCh)
		for _, f := range files {
			select {
			case filesCh <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workers := spec.workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for path := range filesCh {
				if err := processFile(gctx, path, interp, spec.batchSize, stats, parseAgg, batches); err != nil {
					return err
				}
			}
			return nil
		})
	}

	workerErr := g.Wait()
	close(batches)
	writerErr := <-writerDone

	logTaskSummary(spec.name, stats, parseAgg)

	if writerErr != nil {
		return stats, fmt.Errorf("writer: %w", writerErr)
	}
	if workerErr != nil && !errors.Is(workerErr, context.Canceled) {
		return stats, workerErr
	}
	return stats, nil
}

// processFile streams one input file record by record. An unreadable file is
// skipped (counted, non-fatal); a mid-stream read or decompression error is
// fatal for the run, since a truncated archive may hide data.
func processFile(ctx context.Context, path string, interp *extract.Interpreter, batchSize int, stats *counters, parseAgg *errAgg, batches chan<- *emit.Batch) error {
	start := time.Now()

	r, err := file.Open(path)
	if err != nil {
		warnf("skipping unreadable input %s: %v", path, err)
		stats.fileErrors.Add(1)
		return nil
	}
	defer r.Close()

	send := func(b *emit.Batch) error {
		if b.Empty() {
			return nil
		}
		select {
		case batches <- b:
			stats.batches.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	br := bufio.NewReaderSize(r, lineBufSize)
	batch := &emit.Batch{}
	line := 0
	rows := 0

	for {
		data, readErr := br.ReadBytes('\n')
		if len(data) > 0 {
			line++
			stats.lines.Add(1)
			if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 {
				interpretLine(trimmed, path, line, interp, batch, stats, parseAgg)
			}
			if batch.RecordCount >= batchSize {
				rows += batch.Rows()
				if err := send(batch); err != nil {
					return err
				}
				batch = &emit.Batch{}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}
	}

	rows += batch.Rows()
	if err := send(batch); err != nil {
		return err
	}
	stats.files.Add(1)
	debugf("finished %s: lines=%d rows=%d elapsed=%s", path, line, rows, time.Since(start).Truncate(time.Millisecond))
	return nil
}

// interpretLine parses one line and runs the interpreter. Parse failures and
// skips are counted, never fatal.
func interpretLine(data []byte, path string, line int, interp *extract.Interpreter, batch *emit.Batch, stats *counters, parseAgg *errAgg) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		stats.parseErrors.Add(1)
		parseAgg.add(fmt.Sprintf("%s:%d: %v", path, line, err))
		return
	}
	if _, ok := root.(map[string]any); !ok {
		stats.parseErrors.Add(1)
		parseAgg.add(fmt.Sprintf("%s:%d: line is not a JSON object", path, line))
		return
	}

	switch interp.Record(root, batch) {
	case extract.SkipNone:
		stats.records.Add(1)
	case extract.SkipMissingID:
		stats.missingID.Add(1)
	case extract.SkipFiltered:
		stats.filtered.Add(1)
	}
}

// logTaskSummary prints the per-task counters plus a sample of parse errors.
func logTaskSummary(name string, c *counters, parseAgg *errAgg) {
	infof(
		"task %q summary: files=%s file_errors=%s lines=%s records=%s parse_errors=%s missing_identifier=%s filtered=%s batches=%s",
		name,
		pr.Sprintf("%d", c.files.Load()),
		pr.Sprintf("%d", c.fileErrors.Load()),
		pr.Sprintf("%d", c.lines.Load()),
		pr.Sprintf("%d", c.records.Load()),
		pr.Sprintf("%d", c.parseErrors.Load()),
		pr.Sprintf("%d", c.missingID.Load()),
		pr.Sprintf("%d", c.filtered.Load()),
		pr.Sprintf("%d", c.batches.Load()),
	)

	if samples := parseAgg.samples(); len(samples) > 0 {
		debugf("parse errors: %d (showing first %d)", parseAgg.total(), len(samples))
		for i, s := range samples {
			debugf("  #%03d: %s", i+1, s)
		}
	}
}
