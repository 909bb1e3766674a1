//go:build unix

package scanner

import (
	"os"
	"syscall"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// identityOf returns the inode number of a file.
func identityOf(info os.FileInfo) types.Identity {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return types.Identity{}
	}
	return types.Inode(uint64(stat.Ino))
}
