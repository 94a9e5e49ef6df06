// Package main wires the extraction pipeline end-to-end: run configuration,
// profiles, per-task streaming execution, and the shared CSV writer. This
// file keeps the CLI layer thin; the streaming runtime lives in
// container.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"affilgraph/internal/config"
	"affilgraph/internal/extract"
	"affilgraph/internal/metrics"
	"affilgraph/internal/metrics/prompush"
	"affilgraph/internal/output"
	"affilgraph/internal/profile"
	"affilgraph/internal/sysinfo"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// timestampEnv overrides the task timestamp for reproducible runs. The value
// must be RFC 3339.
const timestampEnv = "AFFILGRAPH_TIMESTAMP"

// logLevel gates the leveled log helpers below.
type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

var verbosity = levelInfo

func parseLogLevel(s string) (logLevel, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return levelDebug, true
	case "INFO":
		return levelInfo, true
	case "WARN", "WARNING":
		return levelWarn, true
	case "ERROR":
		return levelError, true
	}
	return levelInfo, false
}

func debugf(format string, a ...any) {
	if verbosity <= levelDebug {
		log.Printf("DEBUG "+format, a...)
	}
}

func infof(format string, a ...any) {
	if verbosity <= levelInfo {
		log.Printf(format, a...)
	}
}

func warnf(format string, a ...any) {
	if verbosity <= levelWarn {
		log.Printf("WARN "+format, a...)
	}
}

func errorf(format string, a ...any) {
	log.Printf("ERROR "+format, a...)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// pr formats large counts with grouped digits for run summaries.
var pr = message.NewPrinter(language.English)

func main() {
	var (
		runConfigPath  string
		outputDir      string
		logLevelFlg    string
		threads        int
		batchSize      int
		createMetadata bool
		validateOnly   bool
		metricsBackend string
		pushGatewayURL string
	)

	flag.StringVar(&runConfigPath, "run-config", "", "path to the run configuration YAML file")
	flag.StringVar(&outputDir, "output", "", "output directory for CSV files")
	flag.StringVar(&logLevelFlg, "log-level", "INFO", "logging level (DEBUG, INFO, WARN, ERROR)")
	flag.IntVar(&threads, "threads", 0, "number of worker threads (0 for auto)")
	flag.IntVar(&batchSize, "batch-size", 10000, "records per batch sent to the writer")
	flag.BoolVar(&createMetadata, "create-metadata-files", false, "also emit source/process metadata files")
	flag.BoolVar(&validateOnly, "validate", false, "validate the configuration and exit")
	flag.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend to use (pushgateway, none; overrides env METRICS_BACKEND)")
	flag.StringVar(&pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.Parse()

	if runConfigPath == "" || outputDir == "" {
		fatalf("both -run-config and -output are required")
	}

	lvl, ok := parseLogLevel(logLevelFlg)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid log level %q, defaulting to INFO\n", logLevelFlg)
	}
	verbosity = lvl

	start := time.Now()
	infof("starting extraction run")
	logMemory("initial")

	run, err := config.Load(runConfigPath)
	if err != nil {
		fatalf("%v", err)
	}

	// Static validation of the run config plus every referenced profile,
	// surfaced before any worker starts.
	issues := config.ValidateRun(run)

	profiles := make(map[string]*profile.Profile)
	order := make([]string, 0, len(run.Tasks)) // distinct profile paths, task order
	for i, task := range run.Tasks {
		if task.Profile == "" {
			continue
		}
		if _, ok := profiles[task.Profile]; !ok {
			p, err := profile.Load(task.Profile)
			if err != nil {
				issues = append(issues, config.Issue{
					Severity: config.SeverityError,
					Path:     fmt.Sprintf("tasks[%d].profile", i),
					Message:  err.Error(),
				})
				continue
			}
			for _, iss := range profile.Validate(p) {
				iss.Path = fmt.Sprintf("tasks[%d].profile: %s", i, iss.Path)
				issues = append(issues, iss)
			}
			profiles[task.Profile] = p
			order = append(order, task.Profile)
		}
		if p, ok := profiles[task.Profile]; ok {
			if _, err := p.ResolveFilters(task.Filters); err != nil {
				issues = append(issues, config.Issue{
					Severity: config.SeverityError,
					Path:     fmt.Sprintf("tasks[%d].filters", i),
					Message:  err.Error(),
				})
			}
		}
	}

	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if validateOnly {
		if config.HasError(issues) {
			log.Printf("configuration is invalid: %v", runConfigPath)
			os.Exit(1)
		}
		log.Printf("configuration is valid: %v", runConfigPath)
		os.Exit(0)
	}
	if config.HasError(issues) {
		fatalf("configuration is invalid: %v", runConfigPath)
	}

	setupMetrics(metricsBackend, pushGatewayURL, run.Description)

	workers := threads
	if workers <= 0 {
		workers = runtime.NumCPU()
		infof("auto-detected %d CPU cores, using %d workers", workers, workers)
	} else {
		infof("using %d workers", workers)
	}
	if batchSize <= 0 {
		batchSize = 10000
	}

	writer, err := output.NewWriter(outputDir)
	if err != nil {
		fatalf("%v", err)
	}
	infof("output directory: %s", outputDir)

	ctx := context.Background()
	var fileErrors int64
	fatal := false

	for i, task := range run.Tasks {
		name := task.Description
		if name == "" {
			name = fmt.Sprintf("task-%d", i+1)
		}
		prof := profiles[task.Profile]

		ts, err := taskTimestamp()
		if err != nil {
			errorf("%v", err)
			fatal = true
			break
		}

		taskStart := time.Now()
		stats, err := runTask(ctx, taskSpec{
			name:      name,
			inputDir:  task.InputDir,
			prof:      prof,
			filters:   task.Filters,
			timestamp: ts,
			writer:    writer,
			workers:   workers,
			batchSize: batchSize,
		})
		metrics.RecordTask(name, err, time.Since(taskStart))
		if stats != nil {
			fileErrors += stats.fileErrors.Load()
			recordTaskMetrics(name, stats)
		}
		if err != nil {
			errorf("task %q failed: %v", name, err)
			fatal = true
			break
		}
	}

	// Every profile-defined null value must exist in values.csv even when
	// it was never substituted, so downstream joins always resolve.
	if !fatal {
		for _, path := range order {
			it := extract.NewInterpreter(profiles[path], nil, "")
			if err := writer.AppendNullValues(it.NullRows()); err != nil {
				errorf("finalize null values: %v", err)
				fatal = true
				break
			}
		}
	}

	if !fatal && createMetadata {
		ordered := make([]*profile.Profile, 0, len(order))
		for _, path := range order {
			ordered = append(ordered, profiles[path])
		}
		date := time.Now().UTC().Format("2006-01-02")
		if ts, err := taskTimestamp(); err == nil {
			if parsed, perr := time.Parse(time.RFC3339, ts); perr == nil {
				date = parsed.UTC().Format("2006-01-02")
			}
		}
		if err := writer.WriteMetadata(ordered, date); err != nil {
			errorf("write metadata files: %v", err)
			fatal = true
		}
	}

	logRunSummary(writer, start)

	if err := writer.Close(); err != nil {
		errorf("close output files: %v", err)
		fatal = true
	}
	if err := metrics.Flush(); err != nil {
		warnf("metrics flush: %v", err)
	}
	logMemory("final")

	if fatal || fileErrors > 0 {
		os.Exit(1)
	}
}

// taskTimestamp returns the task start time in RFC 3339 UTC, honoring the
// environment override for reproducible runs.
func taskTimestamp() (string, error) {
	if v := os.Getenv(timestampEnv); v != "" {
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			return "", fmt.Errorf("%s: %w", timestampEnv, err)
		}
		return v, nil
	}
	return time.Now().UTC().Format(time.RFC3339), nil
}

// setupMetrics decides the metrics backend: flag → env → none.
func setupMetrics(backendName, gatewayURL, jobName string) {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gatewayURL == "" {
			gatewayURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:9091"
		}
		if jobName == "" {
			jobName = "affilgraph"
		}
		b, err := prompush.NewBackend(jobName, gatewayURL)
		if err != nil {
			warnf("metrics: failed to init pushgateway backend: %v; metrics disabled", err)
			return
		}
		infof("metrics: backend=pushgateway url=%s job=%s", gatewayURL, jobName)
		metrics.SetBackend(b)

	case "", "none":
		debugf("metrics: disabled")

	default:
		warnf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func recordTaskMetrics(name string, stats *counters) {
	metrics.RecordRecords(name, "processed", stats.records.Load())
	metrics.RecordRecords(name, "parse_errors", stats.parseErrors.Load())
	metrics.RecordRecords(name, "missing_identifier", stats.missingID.Load())
	metrics.RecordRecords(name, "filtered", stats.filtered.Load())
	metrics.RecordBatches(name, stats.batches.Load())
}

func logRunSummary(w *output.Writer, start time.Time) {
	infof("-------------------- run summary --------------------")
	infof("total execution time: %s", time.Since(start).Truncate(time.Millisecond))

	counts := w.RowCounts()
	tables := make([]string, 0, len(counts))
	for name := range counts {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	for _, name := range tables {
		infof("  %s.csv: %s rows", name, pr.Sprintf("%d", counts[name]))
		metrics.RecordRows("run", name, counts[name])
	}
	infof("distinct IDs written: %s", pr.Sprintf("%d", w.UniqueIDs()))
}

func logMemory(note string) {
	if rss, vsz, ok := sysinfo.Memory(); ok {
		infof("memory usage (%s): %.1f MB rss, %.1f MB virtual", note, rss, vsz)
	}
}
