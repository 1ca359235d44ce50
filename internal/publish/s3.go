package publish

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	xlog "github.com/melody-ding/go-vidsr/internal/log"
)

// Target is an S3 destination: s3://bucket/prefix.
type Target struct {
	Bucket string
	Prefix string
}

// ParseURL parses an s3:// URL.
func ParseURL(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parse upload target: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return Target{}, fmt.Errorf("upload target must look like s3://bucket/prefix, got %q", raw)
	}
	return Target{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// Key is the object key of a file name under the target prefix.
func (t Target) Key(name string) string {
	if t.Prefix == "" {
		return name
	}
	return path.Join(t.Prefix, name)
}

func (t Target) String() string {
	return "s3://" + path.Join(t.Bucket, t.Prefix)
}

// Uploader copies produced files to S3.
type Uploader struct {
	api         s3manageriface.UploaderAPI
	target      Target
	concurrency int
	log         zerolog.Logger
}

// NewUploader uses the default AWS credential chain.
func NewUploader(target Target, region string, log zerolog.Logger) (*Uploader, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *cfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewUploaderWithAPI(s3manager.NewUploader(sess), target, log), nil
}

// NewUploaderWithAPI wraps an existing upload manager.
func NewUploaderWithAPI(api s3manageriface.UploaderAPI, target Target, log zerolog.Logger) *Uploader {
	return &Uploader{api: api, target: target, concurrency: 4, log: log}
}

// UploadFiles uploads every path under the target prefix by base name and
// returns the object URLs in input order. The first failure cancels the
// remaining uploads.
func (u *Uploader) UploadFiles(ctx context.Context, paths []string) ([]string, error) {
	urls := make([]string, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			key := u.target.Key(filepath.Base(p))
			if err := u.upload(ctx, p, key); err != nil {
				return err
			}
			mu.Lock()
			urls[i] = fmt.Sprintf("s3://%s/%s", u.target.Bucket, key)
			mu.Unlock()
			u.log.Debug().Str(xlog.FieldPath, p).Str(xlog.FieldKey, key).Msg("uploaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	u.log.Info().Int("files", len(paths)).Stringer("target", u.target).Msg("upload finished")
	return urls, nil
}

func (u *Uploader) upload(ctx context.Context, p, key string) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = u.api.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.target.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s to s3://%s/%s: %w", p, u.target.Bucket, key, err)
	}
	return nil
}
