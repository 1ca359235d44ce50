package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/melody-ding/go-vidsr/internal/schedule"
)

// Config is the shared configuration file of both command line tools.
// Flags given on the command line override it.
type Config struct {
	LogLevel    string        `yaml:"log_level"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Upload      UploadConfig  `yaml:"upload"`
	Sample      SampleConfig  `yaml:"sample"`
	Enhance     EnhanceConfig `yaml:"enhance"`
}

// UploadConfig selects an optional S3 destination for produced files.
type UploadConfig struct {
	Target string `yaml:"target"` // s3://bucket/prefix
	Region string `yaml:"region"`
}

// SampleConfig configures vidsample.
type SampleConfig struct {
	schedule.Config `yaml:",inline"`

	FPS       string `yaml:"fps"`    // overrides the probed rate
	Format    string `yaml:"format"` // video | npy
	Split     bool   `yaml:"split"`
	Resize    string `yaml:"resize"`
	ShardSize int    `yaml:"shard_size"`
}

// EnhanceConfig configures videnhance and the model server session.
type EnhanceConfig struct {
	ModelURL    string        `yaml:"model_url"`
	ModelPath   string        `yaml:"model_path"`
	NetScale    int           `yaml:"netscale"`
	OutScale    float64       `yaml:"outscale"`
	Suffix      string        `yaml:"suffix"`
	Tile        int           `yaml:"tile"`
	TilePad     int           `yaml:"tile_pad"`
	PrePad      int           `yaml:"pre_pad"`
	FaceEnhance bool          `yaml:"face_enhance"`
	Half        bool          `yaml:"half"`
	Block       int           `yaml:"block"`
	Ext         string        `yaml:"ext"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRPS      float64       `yaml:"max_rps"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Sample: SampleConfig{
			Config: schedule.DefaultConfig(),
			Format: "video",
		},
		Enhance: EnhanceConfig{
			ModelURL:  "http://127.0.0.1:5000",
			ModelPath: "experiments/pretrained_models/RealESRGAN_x4plus.pth",
			NetScale:  4,
			OutScale:  4,
			Suffix:    "out",
			TilePad:   10,
			Block:     23,
			Ext:       "auto",
			Timeout:   2 * time.Minute,
		},
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return cfg, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return cfg, nil
}

// Validate checks the values that do not depend on the input video.
func (c Config) Validate() error {
	var errs []error
	if err := c.Sample.Config.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Sample.Format {
	case "video", "npy":
	default:
		errs = append(errs, fmt.Errorf("sample format must be video or npy, got %q", c.Sample.Format))
	}
	if c.Sample.ShardSize < 0 {
		errs = append(errs, fmt.Errorf("shard size must not be negative, got %d", c.Sample.ShardSize))
	}
	if c.Sample.ShardSize > 0 && !c.Sample.Split {
		errs = append(errs, errors.New("shard size requires split samples"))
	}
	if c.Enhance.OutScale <= 0 {
		errs = append(errs, fmt.Errorf("outscale must be positive, got %v", c.Enhance.OutScale))
	}
	if c.Enhance.NetScale <= 0 {
		errs = append(errs, fmt.Errorf("netscale must be positive, got %d", c.Enhance.NetScale))
	}
	if c.Enhance.MaxRPS < 0 {
		errs = append(errs, fmt.Errorf("max_rps must not be negative, got %v", c.Enhance.MaxRPS))
	}
	if c.Enhance.Tile < 0 || c.Enhance.TilePad < 0 || c.Enhance.PrePad < 0 {
		errs = append(errs, errors.New("tile, tile_pad and pre_pad must not be negative"))
	}
	return errors.Join(errs...)
}
