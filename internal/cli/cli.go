// Package cli holds the wiring shared by the command line tools.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xlog "github.com/melody-ding/go-vidsr/internal/log"
	"github.com/melody-ding/go-vidsr/internal/metrics"
	"github.com/melody-ding/go-vidsr/internal/publish"
)

// Setup configures the global logger for tool and returns a logger tagged
// with a fresh run id.
func Setup(tool, level string) zerolog.Logger {
	xlog.Configure(xlog.Config{Level: level, Service: tool})
	return xlog.WithComponent("cli").With().Str(xlog.FieldRunID, xlog.NewRunID()).Logger()
}

// Run calls fn with a context cancelled on SIGINT or SIGTERM. When
// metricsAddr is set the metrics endpoint is served until fn returns.
func Run(parent context.Context, metricsAddr string, log zerolog.Logger, fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvCtx, stopSrv := context.WithCancel(ctx)
	defer stopSrv()

	g, gctx := errgroup.WithContext(srvCtx)
	if metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, metricsAddr, log)
		})
	}
	g.Go(func() error {
		defer stopSrv()
		return fn(gctx)
	})
	return g.Wait()
}

// Upload copies paths to an s3:// target. An empty target is a no-op.
func Upload(ctx context.Context, target, region string, paths []string, log zerolog.Logger) ([]string, error) {
	if target == "" || len(paths) == 0 {
		return nil, nil
	}
	tgt, err := publish.ParseURL(target)
	if err != nil {
		return nil, err
	}
	up, err := publish.NewUploader(tgt, region, log)
	if err != nil {
		return nil, err
	}
	return up.UploadFiles(ctx, paths)
}
