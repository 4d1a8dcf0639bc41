package artifact

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/bitswalk/upenwrt/src/common/errors"
	"github.com/bitswalk/upenwrt/src/common/paths"
)

// decompress wraps r according to the archive name's extension.
func decompress(r io.Reader, name string) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".tar.zst"):
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil

	case strings.HasSuffix(name, ".tar.xz") || strings.HasSuffix(name, ".txz"):
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return io.NopCloser(xzReader), nil

	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, nil

	case strings.HasSuffix(name, ".tar"):
		return io.NopCloser(r), nil

	default:
		return nil, errors.ErrInvalidArgument.WithMessagef("Unsupported archive format: %s", name)
	}
}

// extractArchive unpacks the tar stream r, compressed as name suggests, into destDir.
func extractArchive(ctx context.Context, r io.Reader, name, destDir string) error {
	stream, err := decompress(r, name)
	if err != nil {
		return err
	}
	defer stream.Close()

	root, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return errors.ErrInternal.WithMessage("Failed to resolve extraction directory").WithCause(err)
	}

	tarReader := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return errors.ErrCanceled.WithMessage("Image builder extraction canceled").WithCause(err)
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.ErrArchiveLayout.WithMessagef("Corrupt archive %s", name).WithCause(err)
		}

		if err := extractEntry(tarReader, header, root); err != nil {
			return err
		}
	}
}

// extractEntry writes one tar entry below root, which must already be free of
// symlinks.
func extractEntry(tarReader *tar.Reader, header *tar.Header, root string) error {
	rel := strings.TrimPrefix(header.Name, "./")
	if rel == "" || rel == "." {
		return nil
	}

	target, err := paths.Within(root, rel)
	if err != nil || target == root {
		return errors.ErrArchiveLayout.WithMessagef("Invalid tar path: %s", header.Name)
	}
	if err := parentWithin(root, target); err != nil {
		return errors.ErrArchiveLayout.WithMessagef("Tar entry %s leaves the archive through a symlink", header.Name).WithCause(err)
	}
	// An earlier symlink at this path is replaced, not written through.
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("failed to replace symlink: %w", err)
		}
	}

	switch header.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, os.FileMode(header.Mode)|0o700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
		outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
		if err != nil {
			return fmt.Errorf("failed to create file: %w", err)
		}
		if _, err := io.Copy(outFile, tarReader); err != nil {
			outFile.Close()
			return fmt.Errorf("failed to write file: %w", err)
		}
		if err := outFile.Close(); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}

	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
		if err := os.Symlink(header.Linkname, target); err != nil {
			return fmt.Errorf("failed to create symlink: %w", err)
		}

	case tar.TypeLink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
		linkTarget, err := paths.Within(root, strings.TrimPrefix(header.Linkname, "./"))
		if err != nil || parentWithin(root, linkTarget) != nil {
			return errors.ErrArchiveLayout.WithMessagef("Invalid hard link target: %s", header.Linkname)
		}
		if err := os.Link(linkTarget, target); err != nil {
			return fmt.Errorf("failed to create hard link: %w", err)
		}

	default:
		log.Debug("Skipping tar entry", "name", header.Name, "type", string(header.Typeflag))
	}

	return nil
}

// parentWithin checks that the deepest existing ancestor of target still
// lies under root once symlinks extracted so far are followed.
func parentWithin(root, target string) error {
	dir := filepath.Dir(target)
	for dir != root {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		dir = filepath.Dir(dir)
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if resolved != root && !strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
		return fmt.Errorf("%s resolves to %s", dir, resolved)
	}
	return nil
}
