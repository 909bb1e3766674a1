//go:build windows

package scanner

import (
	"os"
	"syscall"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// identityOf returns the Windows attribute bits of a file.
func identityOf(info os.FileInfo) types.Identity {
	data, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return types.Identity{}
	}
	return types.FileAttr(data.FileAttributes)
}
