//go:build windows

package manifest

import "golang.org/x/sys/windows"

// hideDir sets FILE_ATTRIBUTE_HIDDEN on the directory.
func hideDir(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(p, attrs|windows.FILE_ATTRIBUTE_HIDDEN)
}
