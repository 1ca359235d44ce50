package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/melody-ding/go-vidsr/internal/batch"
	"github.com/melody-ding/go-vidsr/internal/cli"
	"github.com/melody-ding/go-vidsr/internal/config"
	xlog "github.com/melody-ding/go-vidsr/internal/log"
	"github.com/melody-ding/go-vidsr/internal/processor"
	"github.com/melody-ding/go-vidsr/internal/schedule"
	"github.com/melody-ding/go-vidsr/internal/sharding"
	"github.com/melody-ding/go-vidsr/internal/types"
)

const tool = "vidsample"

type flags struct {
	configPath  string
	input       string
	output      string
	container   string
	preview     bool
	progress    bool
	dryRun      bool
	logLevel    string
	metricsAddr string
	upload      string
	region      string

	beginSkip      int
	sampleLength   int
	sampleGap      int
	sampleNum      int
	retestBoundary bool
	fps            string
	format         string
	split          bool
	resize         string
	shardSize      int
}

func main() {
	var f flags
	if err := newRootCmd(&f).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   tool,
		Short: "Extract periodic samples from videos",
		Long: `Extracts a clip of --sample-length seconds every --sample-length + --sample-gap
seconds, starting --begin-skip seconds in, for sample indexes 0..--sample-num.

--input may be a video file, a directory of videos or a .tar archive of videos.
For a single file --output is the output file; otherwise it is a directory.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			log := cli.Setup(tool, cfg.LogLevel)
			return cli.Run(cmd.Context(), cfg.MetricsAddr, log, func(ctx context.Context) error {
				return run(ctx, cmd, *f, cfg, log)
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to config file (YAML)")
	fs.StringVar(&f.input, "input", "", "input video, directory or .tar archive")
	fs.StringVar(&f.output, "output", "", "output file, or directory for several inputs")
	fs.StringVar(&f.container, "container", "avi", "output container for directory inputs")
	fs.IntVar(&f.beginSkip, "begin-skip", 0, "seconds to skip from the beginning")
	fs.IntVar(&f.sampleLength, "sample-length", 10, "length of each sample in seconds")
	fs.IntVar(&f.sampleGap, "sample-gap", 300, "gap between samples in seconds")
	fs.IntVar(&f.sampleNum, "sample-num", 0, "index of the last sample to extract")
	fs.BoolVar(&f.retestBoundary, "retest-boundary", false, "keep the frame that ends a sample when it starts the next one")
	fs.StringVar(&f.fps, "fps", "", "override the source frame rate, e.g. 30000/1001")
	fs.StringVar(&f.format, "format", processor.FormatVideo, "output format: video | npy")
	fs.BoolVar(&f.split, "split", false, "write each sample to its own file with a JSON sidecar")
	fs.StringVar(&f.resize, "resize", "", "scale frames to WxH")
	fs.IntVar(&f.shardSize, "shard-size", 0, "pack split samples into WebDataset shards of this many samples")
	fs.StringVar(&f.upload, "upload", "", "upload outputs to s3://bucket/prefix")
	fs.StringVar(&f.region, "region", "", "AWS region for --upload")
	fs.BoolVar(&f.preview, "preview", false, "stop when a line reading q is entered on stdin")
	fs.BoolVar(&f.progress, "progress", false, "show a progress bar")
	fs.BoolVar(&f.dryRun, "dry-run", false, "print the planned sample ranges and exit")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// loadConfig layers the flags the user set over the config file.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	set := cmd.Flags().Changed
	if set("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if set("upload") {
		cfg.Upload.Target = f.upload
	}
	if set("region") {
		cfg.Upload.Region = f.region
	}
	s := &cfg.Sample
	if set("begin-skip") {
		s.BeginSkip = f.beginSkip
	}
	if set("sample-length") {
		s.SampleLength = f.sampleLength
	}
	if set("sample-gap") {
		s.SampleGap = f.sampleGap
	}
	if set("sample-num") {
		s.SampleCount = f.sampleNum
	}
	if set("retest-boundary") {
		s.RetestBoundary = f.retestBoundary
	}
	if set("fps") {
		s.FPS = f.fps
	}
	if set("format") {
		s.Format = f.format
	}
	if set("split") {
		s.Split = f.split
	}
	if set("resize") {
		s.Resize = f.resize
	}
	if set("shard-size") {
		s.ShardSize = f.shardSize
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cobra.Command, f flags, cfg config.Config, log zerolog.Logger) error {
	work, err := os.MkdirTemp("", "vidsample-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	clips, err := batch.Collect(f.input, work)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return fmt.Errorf("no videos found in %s", f.input)
	}
	single := len(clips) == 1 && !isDirOrTar(f.input)
	if single && f.output == "" {
		return errors.New("--output is required")
	}

	if f.dryRun {
		return plan(ctx, cmd, clips, cfg.Sample)
	}

	var keys *processor.KeyPreview
	var preview schedule.Preview
	if f.preview {
		keys = processor.NewKeyPreview(os.Stdin)
		preview = keys
	}

	var outputs []string
	sum, err := batch.Run(ctx, tool, clips, func(ctx context.Context, clip types.Clip) error {
		if keys != nil && keys.Stopped() {
			return batch.ErrStop
		}
		opts := processor.Options{
			Input:    clip.Path,
			Output:   outputPath(f, cfg.Sample.Format, clip, single),
			Sampling: cfg.Sample.Config,
			FPS:      cfg.Sample.FPS,
			Format:   cfg.Sample.Format,
			Split:    cfg.Sample.Split,
			Resize:   cfg.Sample.Resize,
			Preview:  preview,
			Progress: f.progress,
		}
		res, err := processor.SampleVideo(ctx, opts, log.With().Str(xlog.FieldKey, clip.Key).Logger())
		if res != nil {
			outputs = append(outputs, res.Outputs...)
		}
		return stopOnPreview(res, err)
	}, log)
	if err != nil {
		return err
	}

	publishable, err := finalize(outputs, cfg.Sample, outputDir(f, single), log)
	if err != nil {
		return err
	}
	if _, err := cli.Upload(ctx, cfg.Upload.Target, cfg.Upload.Region, publishable, log); err != nil {
		return err
	}
	return sum.Err()
}

// stopOnPreview turns a run ended from the preview into the end of the batch.
func stopOnPreview(res *processor.Result, err error) error {
	if err == nil && res != nil && res.Stats.Reason == schedule.StopPreview {
		return batch.ErrStop
	}
	return err
}

// finalize packs split samples into shards when asked and returns the files to publish.
func finalize(outputs []string, s config.SampleConfig, dir string, log zerolog.Logger) ([]string, error) {
	if s.ShardSize > 0 && len(outputs) > 0 {
		shards, err := sharding.CreateWebDatasetShards(outputs, filepath.Join(dir, "shards"), s.ShardSize)
		if err != nil {
			return nil, err
		}
		log.Info().Int("shards", len(shards)).Int("samples", len(outputs)).Msg("shards written")
		return shards, nil
	}
	if !s.Split {
		return outputs, nil
	}
	files := make([]string, 0, 2*len(outputs))
	for _, o := range outputs {
		files = append(files, o, sharding.SidecarPath(o))
	}
	return files, nil
}

func plan(ctx context.Context, cmd *cobra.Command, clips []types.Clip, s config.SampleConfig) error {
	out := cmd.OutOrStdout()
	for _, clip := range clips {
		info, segments, err := processor.PlanVideo(ctx, clip.Path, s.Config, s.FPS)
		if errors.Is(err, schedule.ErrUnknownLength) {
			fmt.Fprintf(out, "%s: length unknown at %s fps\n", clip.Key, info.FPS)
			continue
		}
		if errors.Is(err, schedule.ErrInvalidConfig) {
			return err
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", clip.Key, err)
			continue
		}
		fmt.Fprintf(out, "%s: %d frames at %s fps, %d samples, %d frames kept\n",
			clip.Key, info.Frames, info.FPS, len(segments), schedule.PlannedFrames(segments))
		for _, seg := range segments {
			fmt.Fprintf(out, "  sample %d: frames %d-%d (%.2fs)\n", seg.Index, seg.Start, seg.End, info.FPS.Seconds(seg.Start))
		}
	}
	return nil
}

func outputPath(f flags, format string, clip types.Clip, single bool) string {
	if single {
		return f.output
	}
	ext := f.container
	if format == processor.FormatNPY {
		ext = "npy"
	}
	return filepath.Join(outputDir(f, single), clip.Key+"."+strings.TrimPrefix(ext, "."))
}

func outputDir(f flags, single bool) string {
	if single {
		return filepath.Dir(f.output)
	}
	if f.output == "" {
		return "results"
	}
	return f.output
}

func isDirOrTar(input string) bool {
	if st, err := os.Stat(input); err == nil && st.IsDir() {
		return true
	}
	return strings.EqualFold(filepath.Ext(input), ".tar")
}
