// Package pipeline orchestrates a full snapshot diff run: drain the
// paginated diff stream into raw page files, bucketize records by level,
// serialize the buckets into replay order, and optionally translate the
// ordered records into batched JSON change events. Stages run strictly in
// sequence; a fatal error at any stage aborts the remainder and leaves
// the artifacts produced so far in place.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"snapdiff/internal/bucket"
	"snapdiff/internal/config"
	"snapdiff/internal/event"
	"snapdiff/internal/fsutil"
	"snapdiff/internal/logutil"
	"snapdiff/internal/stream"
)

// Result directory layout.
const (
	logFileName    = "out.log"
	rawDirName     = "raw"
	bucketsDirName = "parallel_diff"
	serializedName = "serialized_diff"
	jsonDirName    = "serialized_json"
)

// Options holds the inputs of one snapshot diff run.
type Options struct {
	SnapDir      string // snapshot stream root
	Snap1        string // source snapshot identifier
	Snap2        string // target snapshot identifier
	ResultDir    string // must exist and be empty
	GenerateJSON bool   // run the event mapper stage

	Config *config.Config // nil means defaults
}

// Run executes the pipeline. All diagnostics beyond result-directory
// validation go to <result>/out.log; a non-nil return means the run
// failed and the log holds the detail.
func Run(opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// The result directory is validated before the log file exists, so
	// these two failures are the only ones reported without a log trail.
	if !fsutil.IsDir(opts.ResultDir) {
		return fmt.Errorf("result directory %s is not a directory", opts.ResultDir)
	}
	if !fsutil.IsDirEmpty(opts.ResultDir) {
		return fmt.Errorf("result directory %s is not empty", opts.ResultDir)
	}

	logPath := filepath.Join(opts.ResultDir, logFileName)
	logger, logFile, err := logutil.NewFileLogger(logPath, logutil.LevelFromString(cfg.Logging.Level))
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	// Every line of this run carries the same run id so interleaved runs
	// appending to the same log stay separable.
	logger = logger.With("run", uuid.NewString())

	fail := func(msg string, err error) error {
		logger.Error(msg, "error", err)
		return err
	}

	if !fsutil.IsDir(opts.SnapDir) {
		err := fmt.Errorf("snapshot directory %s is not a directory", opts.SnapDir)
		logger.Error("Snapshot directory is not a directory", "snapDir", opts.SnapDir)
		return err
	}

	logger.Info("Starting snapshot diff run")
	logger.Info("Input parameters",
		"snapDir", opts.SnapDir,
		"snap1", opts.Snap1,
		"snap2", opts.Snap2,
		"resultDir", opts.ResultDir)

	rawDir := filepath.Join(opts.ResultDir, rawDirName)
	if err := os.Mkdir(rawDir, 0755); err != nil {
		return fail("Unable to create directory", fmt.Errorf("create %s: %w", rawDir, err))
	}

	logger.Info("Reading raw diffs")
	drainer := &stream.Drainer{
		Root:       opts.SnapDir,
		SnapA:      opts.Snap1,
		SnapB:      opts.Snap2,
		RawDir:     rawDir,
		Opener:     stream.NewOpener(cfg.MaxRetries, cfg.RetryInterval, logger),
		BufferSize: cfg.ReadBufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	}
	pages, err := drainer.Drain()
	if err != nil {
		return fail("Issue in reading raw diff", err)
	}

	bucketsDir := filepath.Join(opts.ResultDir, bucketsDirName)
	if err := os.Mkdir(bucketsDir, 0755); err != nil {
		return fail("Unable to create directory", fmt.Errorf("create %s: %w", bucketsDir, err))
	}

	logger.Info("Generating bucketized diffs")
	buckets, err := bucket.Bucketize(rawDir, pages, bucketsDir, logger)
	if err != nil {
		return fail("Issue in bucketizing diff", err)
	}

	logger.Info("Generating serialized diffs")
	serialPath := filepath.Join(opts.ResultDir, serializedName)
	if err := bucket.Serialize(buckets, serialPath, logger); err != nil {
		return fail("Issue in serializing diff", err)
	}

	jsonDir := filepath.Join(opts.ResultDir, jsonDirName)
	if err := os.Mkdir(jsonDir, 0755); err != nil {
		return fail("Unable to create directory", fmt.Errorf("create %s: %w", jsonDir, err))
	}

	if opts.GenerateJSON {
		logger.Info("Generating json file")
		gen := event.NewGenerator(opts.SnapDir, jsonDir, cfg.BatchSize, logger)
		if err := gen.Generate(serialPath); err != nil {
			return fail("Issue in generating json", err)
		}
	}

	logger.Info("Snapshot diff completed successfully")
	return nil
}
