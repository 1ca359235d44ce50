package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/melody-ding/go-vidsr/internal/batch"
	"github.com/melody-ding/go-vidsr/internal/cli"
	"github.com/melody-ding/go-vidsr/internal/config"
	"github.com/melody-ding/go-vidsr/internal/enhance"
	xlog "github.com/melody-ding/go-vidsr/internal/log"
	"github.com/melody-ding/go-vidsr/internal/types"
)

const tool = "videnhance"

type flags struct {
	configPath  string
	input       string
	output      string
	logLevel    string
	metricsAddr string
	upload      string
	region      string

	modelURL    string
	modelPath   string
	netScale    int
	outScale    float64
	suffix      string
	tile        int
	tilePad     int
	prePad      int
	faceEnhance bool
	half        bool
	block       int
	ext         string
	timeout     time.Duration
	maxRPS      float64
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
		Short: "Enhance videos frame by frame with a super-resolution model server",
		Long: `Decodes every input video, sends each frame to the model server and writes the
enhanced frames to {output}/{name}_{suffix}.{ext}. Frames the model fails on are
logged and skipped.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			log := cli.Setup(tool, cfg.LogLevel)
			return cli.Run(cmd.Context(), cfg.MetricsAddr, log, func(ctx context.Context) error {
				return run(ctx, *f, cfg, log)
			})
		},
	}

	def := config.Default().Enhance
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "path to config file (YAML)")
	fs.StringVar(&f.input, "input", "inputs", "input video, directory or .tar archive")
	fs.StringVar(&f.output, "output", "results", "output directory")
	fs.StringVar(&f.modelURL, "model-url", def.ModelURL, "model server base URL")
	fs.StringVar(&f.modelPath, "model-path", def.ModelPath, "path to the pretrained model, as seen by the model server")
	fs.IntVar(&f.netScale, "netscale", def.NetScale, "upsample scale factor of the network")
	fs.Float64Var(&f.outScale, "outscale", def.OutScale, "final upsampling scale of the video")
	fs.StringVar(&f.suffix, "suffix", def.Suffix, "suffix of the enhanced video")
	fs.IntVar(&f.tile, "tile", def.Tile, "tile size, 0 for no tiling")
	fs.IntVar(&f.tilePad, "tile-pad", def.TilePad, "tile padding")
	fs.IntVar(&f.prePad, "pre-pad", def.PrePad, "pre padding size at each border")
	fs.BoolVar(&f.faceEnhance, "face-enhance", false, "enhance faces")
	fs.BoolVar(&f.half, "half", false, "use half precision during inference")
	fs.IntVar(&f.block, "block", def.Block, "number of RRDB blocks")
	fs.StringVar(&f.ext, "ext", def.Ext, "video extension: auto | avi | mp4, auto keeps the input extension")
	fs.DurationVar(&f.timeout, "timeout", def.Timeout, "timeout of one model server request")
	fs.Float64Var(&f.maxRPS, "max-rps", 0, "cap enhance requests per second, 0 for no cap")
	fs.StringVar(&f.upload, "upload", "", "upload outputs to s3://bucket/prefix")
	fs.StringVar(&f.region, "region", "", "AWS region for --upload")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
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
	e := &cfg.Enhance
	if set("model-url") {
		e.ModelURL = f.modelURL
	}
	if set("model-path") {
		e.ModelPath = f.modelPath
	}
	if set("netscale") {
		e.NetScale = f.netScale
	}
	if set("outscale") {
		e.OutScale = f.outScale
	}
	if set("suffix") {
		e.Suffix = f.suffix
	}
	if set("tile") {
		e.Tile = f.tile
	}
	if set("tile-pad") {
		e.TilePad = f.tilePad
	}
	if set("pre-pad") {
		e.PrePad = f.prePad
	}
	if set("face-enhance") {
		e.FaceEnhance = f.faceEnhance
	}
	if set("half") {
		e.Half = f.half
	}
	if set("block") {
		e.Block = f.block
	}
	if set("ext") {
		e.Ext = f.ext
	}
	if set("timeout") {
		e.Timeout = f.timeout
	}
	if set("max-rps") {
		e.MaxRPS = f.maxRPS
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func modelSpec(e config.EnhanceConfig) enhance.ModelSpec {
	return enhance.ResolveModel(enhance.ModelSpec{
		Path:        e.ModelPath,
		NetScale:    e.NetScale,
		NumBlock:    e.Block,
		Tile:        e.Tile,
		TilePad:     e.TilePad,
		PrePad:      e.PrePad,
		Half:        e.Half,
		FaceEnhance: e.FaceEnhance,
		OutScale:    e.OutScale,
	})
}

func run(ctx context.Context, f flags, cfg config.Config, log zerolog.Logger) error {
	spec := modelSpec(cfg.Enhance)
	if err := spec.Validate(); err != nil {
		return err
	}

	work, err := os.MkdirTemp("", "videnhance-")
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
	if err := os.MkdirAll(f.output, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	client, err := enhance.NewClient(cfg.Enhance.ModelURL, cfg.Enhance.Timeout, enhance.WithClientLogger(log))
	if err != nil {
		return err
	}
	if err := client.Load(ctx, spec); err != nil {
		return err
	}
	log.Info().
		Str(xlog.FieldModel, spec.Path).
		Int(xlog.FieldScale, spec.NetScale).
		Int("blocks", spec.NumBlock).
		Msg("model loaded")

	driver := enhance.NewDriver(client, enhance.Options{
		OutputDir:   f.output,
		Suffix:      cfg.Enhance.Suffix,
		Ext:         cfg.Enhance.Ext,
		OutScale:    spec.OutScale,
		NetScale:    spec.NetScale,
		FaceEnhance: spec.FaceEnhance,
		MaxRPS:      cfg.Enhance.MaxRPS,
	}, log)

	var outputs []string
	sum, err := batch.Run(ctx, tool, clips, func(ctx context.Context, clip types.Clip) error {
		rep, err := driver.EnhanceVideo(ctx, clip)
		if rep != nil && err == nil {
			outputs = append(outputs, rep.Output)
		}
		return err
	}, log)
	if err != nil {
		return err
	}

	if _, err := cli.Upload(ctx, cfg.Upload.Target, cfg.Upload.Region, outputs, log); err != nil {
		return err
	}
	return sum.Err()
}
