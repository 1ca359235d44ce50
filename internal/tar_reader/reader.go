package tar_reader

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/melody-ding/go-vidsr/internal/types"
	"github.com/melody-ding/go-vidsr/internal/video"
)

// ExtractClipsFromTar copies every video entry of the archive into destDir
// and returns one clip per entry, in archive order. macOS resource forks
// ("._name") are skipped.
func ExtractClipsFromTar(tarPath, destDir string) ([]types.Clip, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}

	tr := tar.NewReader(f)
	var clips []types.Clip
	keys := types.KeySet{}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", tarPath, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		base := filepath.Base(hdr.Name)
		if strings.HasPrefix(base, "._") || !video.IsVideoFile(base) {
			continue
		}

		ext := filepath.Ext(base)
		// entries with the same base name in different folders must not overwrite each other
		key := keys.Claim(strings.TrimSuffix(base, ext))

		path := filepath.Join(destDir, key+ext)
		if err := extractEntry(tr, path); err != nil {
			return nil, err
		}
		clips = append(clips, types.Clip{Key: key, Path: path})
	}

	return clips, nil
}

func extractEntry(r io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return out.Close()
}
