//go:build !unix && !windows

package scanner

import (
	"os"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/types"
)

// identityOf returns an empty identity on platforms without one.
func identityOf(info os.FileInfo) types.Identity {
	return types.Identity{}
}
