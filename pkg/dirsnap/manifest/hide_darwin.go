//go:build darwin

package manifest

import "golang.org/x/sys/unix"

// hideDir sets the UF_HIDDEN flag so Finder hides the directory.
func hideDir(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return err
	}
	return unix.Chflags(path, int(st.Flags)|unix.UF_HIDDEN)
}
