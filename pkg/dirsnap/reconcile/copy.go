package reconcile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// copyFile streams src to dst, creating the parent directory when needed.
// The permission bits and modification time of src are carried over, so a
// rebuilt destination manifest matches the source by timestamp.
func copyFile(fs afero.Fs, src, dst string) (int64, error) {
	in, err := fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", src)
	}

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	perm := info.Mode().Perm()
	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return n, err
	}
	// Times are applied after Close, which may touch them.
	if err := out.Close(); err != nil {
		return n, err
	}

	// OpenFile leaves the mode of an existing file alone.
	if err := fs.Chmod(dst, perm); err != nil {
		return n, err
	}
	mtime := info.ModTime()
	if err := fs.Chtimes(dst, mtime, mtime); err != nil {
		return n, err
	}
	return n, nil
}
