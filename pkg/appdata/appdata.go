// Package appdata gives access to the files of the application data
// directory and nothing outside of it.
package appdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/xaionaro-go/predictctl/pkg/xpath"
)

type ErrOutsideDataDir struct {
	Path string
}

func (e ErrOutsideDataDir) Error() string {
	return fmt.Sprintf("path '%s' is outside of the application data directory", e.Path)
}

type Dir struct {
	// Root is the directory on the host, empty for in-memory filesystems.
	Root string
	FS   billy.Filesystem
}

// Open opens (creating if needed) the data directory at rawPath; "~/"
// and environment variables are expanded.
func Open(
	ctx context.Context,
	rawPath string,
) (*Dir, error) {
	root, err := xpath.Expand(rawPath)
	if err != nil {
		return nil, fmt.Errorf("unable to expand path '%s': %w", rawPath, err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("unable to get the absolute path of '%s': %w", root, err)
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("unable to create directory '%s': %w", root, err)
	}
	logger.Debugf(ctx, "application data directory: '%s'", root)
	return &Dir{
		Root: root,
		FS:   osfs.New(root, osfs.WithBoundOS()),
	}, nil
}

// New wraps an existing filesystem (e.g. memfs in tests).
func New(fs billy.Filesystem) *Dir {
	return &Dir{FS: fs}
}

// cleanPath returns the slash-separated path relative to the data
// directory, rejecting absolute paths and paths escaping the directory.
func cleanPath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("the path is empty")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || filepath.VolumeName(name) != "" {
		return "", ErrOutsideDataDir{Path: name}
	}
	cleaned := path.Clean(filepath.ToSlash(name))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrOutsideDataDir{Path: name}
	}
	return cleaned, nil
}

// HostPath returns the path on the host, for consumers that cannot work
// through billy (e.g. the sqlite driver).
func (d *Dir) HostPath(name string) (string, error) {
	if d.Root == "" {
		return "", fmt.Errorf("the data directory is not backed by the host filesystem")
	}
	cleaned, err := cleanPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.Root, filepath.FromSlash(cleaned)), nil
}

func (d *Dir) ReadFile(name string) ([]byte, error) {
	cleaned, err := cleanPath(name)
	if err != nil {
		return nil, err
	}
	b, err := util.ReadFile(d.FS, cleaned)
	if err != nil {
		return nil, fmt.Errorf("unable to read file '%s': %w", cleaned, err)
	}
	return b, nil
}

// WriteFile replaces the file atomically (write to "<name>.new", then rename).
func (d *Dir) WriteFile(name string, data []byte) error {
	cleaned, err := cleanPath(name)
	if err != nil {
		return err
	}
	if dir := path.Dir(cleaned); dir != "." {
		if err := d.FS.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("unable to create directory '%s': %w", dir, err)
		}
	}

	pathNew := cleaned + ".new"
	if err := util.WriteFile(d.FS, pathNew, data, 0600); err != nil {
		return fmt.Errorf("unable to write file '%s': %w", pathNew, err)
	}
	if err := d.FS.Rename(pathNew, cleaned); err != nil {
		return fmt.Errorf("cannot move '%s' to '%s': %w", pathNew, cleaned, err)
	}
	return nil
}

func (d *Dir) Exists(name string) (bool, error) {
	cleaned, err := cleanPath(name)
	if err != nil {
		return false, err
	}
	_, err = d.FS.Stat(cleaned)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("unable to access file '%s': %w", cleaned, err)
	}
}

func (d *Dir) Remove(name string) error {
	cleaned, err := cleanPath(name)
	if err != nil {
		return err
	}
	err = d.FS.Remove(cleaned)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to remove file '%s': %w", cleaned, err)
	}
	return nil
}
