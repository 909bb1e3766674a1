//go:build !darwin && !windows

package manifest

// hideDir is a no-op: the leading dot already hides the directory.
func hideDir(string) error {
	return nil
}
