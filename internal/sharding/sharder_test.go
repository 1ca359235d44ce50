package sharding

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tarNames(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var names []string
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	return names
}

func TestCreateWebDatasetShards(t *testing.T) {
	in := t.TempDir()
	var samples []string
	for _, name := range []string{"clip_000", "clip_001", "clip_002"} {
		p := filepath.Join(in, name+".avi")
		require.NoError(t, os.WriteFile(p, []byte("video"), 0644))
		samples = append(samples, p)
	}
	// only the first two have sidecars
	require.NoError(t, os.WriteFile(filepath.Join(in, "clip_000.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "clip_001.json"), []byte("{}"), 0644))

	out := filepath.Join(t.TempDir(), "shards")
	shards, err := CreateWebDatasetShards(samples, out, 2)
	require.NoError(t, err)

	require.Equal(t, []string{
		filepath.Join(out, "shard_00000.tar"),
		filepath.Join(out, "shard_00001.tar"),
	}, shards)
	assert.Equal(t, []string{"clip_000.avi", "clip_000.json", "clip_001.avi", "clip_001.json"}, tarNames(t, shards[0]))
	assert.Equal(t, []string{"clip_002.avi"}, tarNames(t, shards[1]))
}

func TestCreateWebDatasetShardsMissingSample(t *testing.T) {
	_, err := CreateWebDatasetShards([]string{filepath.Join(t.TempDir(), "gone.avi")}, t.TempDir(), 1)
	assert.Error(t, err)
}

func TestCreateWebDatasetShardsInvalidSize(t *testing.T) {
	_, err := CreateWebDatasetShards(nil, t.TempDir(), 0)
	assert.Error(t, err)
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "out/a_001.json", SidecarPath("out/a_001.npy"))
}
