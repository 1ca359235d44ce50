package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	failKey string
}

func (f *fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(context.Background(), in, opts...)
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	key := aws.StringValue(in.Key)
	if key == f.failKey {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.StringValue(in.Bucket)+"/"+key] = string(data)
	f.types[key] = aws.StringValue(in.ContentType)
	return &s3manager.UploadOutput{Location: "https://example/" + key}, nil
}

func newFake() *fakeUploader {
	return &fakeUploader{objects: map[string]string{}, types: map[string]string{}}
}

func TestParseURL(t *testing.T) {
	tgt, err := ParseURL("s3://datasets/clips/v1/")
	require.NoError(t, err)
	assert.Equal(t, Target{Bucket: "datasets", Prefix: "clips/v1"}, tgt)
	assert.Equal(t, "clips/v1/a.tar", tgt.Key("a.tar"))
	assert.Equal(t, "s3://datasets/clips/v1", tgt.String())

	tgt, err = ParseURL("s3://bucket")
	require.NoError(t, err)
	assert.Equal(t, "a.tar", tgt.Key("a.tar"))

	for _, bad := range []string{"http://bucket/x", "s3:///prefix", "datasets/clips"} {
		_, err := ParseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestUploadFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"shard_00000.tar", "shard_00001.tar", "clip_000.json"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0644))
		paths = append(paths, p)
	}

	fake := newFake()
	u := NewUploaderWithAPI(fake, Target{Bucket: "b", Prefix: "run"}, zerolog.Nop())
	urls, err := u.UploadFiles(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"s3://b/run/shard_00000.tar",
		"s3://b/run/shard_00001.tar",
		"s3://b/run/clip_000.json",
	}, urls)
	var keys []string
	for k := range fake.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"b/run/clip_000.json", "b/run/shard_00000.tar", "b/run/shard_00001.tar"}, keys)
	assert.Equal(t, "shard_00001.tar", fake.objects["b/run/shard_00001.tar"])
	assert.Equal(t, "application/json", fake.types["run/clip_000.json"])
}

func TestUploadFilesFailure(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.tar")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))

	fake := newFake()
	fake.failKey = "a.tar"
	u := NewUploaderWithAPI(fake, Target{Bucket: "b"}, zerolog.Nop())
	_, err := u.UploadFiles(context.Background(), []string{p})
	assert.ErrorContains(t, err, "access denied")

	_, err = u.UploadFiles(context.Background(), []string{filepath.Join(dir, "missing.tar")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
