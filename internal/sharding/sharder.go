package sharding

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SidecarPath returns the metadata file that accompanies a sample
func SidecarPath(sample string) string {
	return strings.TrimSuffix(sample, filepath.Ext(sample)) + ".json"
}

// CreateWebDatasetShards packs samples into WebDataset shards of at most
// shardSize samples each. Every sample contributes its media file and, when
// present, its JSON sidecar; both share the sample's base name as key.
func CreateWebDatasetShards(samples []string, outputDir string, shardSize int) ([]string, error) {
	if shardSize <= 0 {
		return nil, fmt.Errorf("shard size must be positive, got %d", shardSize)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create shard dir: %w", err)
	}

	var shards []string
	numShards := (len(samples) + shardSize - 1) / shardSize
	for i := 0; i < numShards; i++ {
		start := i * shardSize
		end := (i + 1) * shardSize
		if end > len(samples) {
			end = len(samples)
		}

		shardPath := filepath.Join(outputDir, fmt.Sprintf("shard_%05d.tar", i))
		if err := createShard(shardPath, samples[start:end]); err != nil {
			return shards, fmt.Errorf("error creating shard %d: %w", i, err)
		}
		shards = append(shards, shardPath)
	}

	return shards, nil
}

// createShard creates a tar file containing the given samples
func createShard(shardPath string, samples []string) (err error) {
	tarFile, err := os.Create(shardPath)
	if err != nil {
		return fmt.Errorf("error creating tar file: %w", err)
	}
	defer func() {
		if cerr := tarFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	tw := tar.NewWriter(tarFile)
	for _, sample := range samples {
		if err := addFile(tw, sample); err != nil {
			return err
		}
		sidecar := SidecarPath(sample)
		if sidecar == sample {
			continue
		}
		if err := addFile(tw, sidecar); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return tw.Close()
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("error reading sample %s: %w", path, err)
	}

	header := &tar.Header{
		Name:    filepath.Base(path),
		Mode:    0644,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("error writing tar header: %w", err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("error writing tar data: %w", err)
	}
	return nil
}
