//go:build !unix

package lock

import "os"

// Without flock the pid file is advisory only.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
