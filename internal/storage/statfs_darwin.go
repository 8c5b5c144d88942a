//go:build darwin

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func detectFilesystemType(path string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}
	return unix.ByteSliceToString(st.Fstypename[:]), nil
}
