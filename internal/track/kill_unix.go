//go:build unix

package track

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// GroupKiller sends SIGKILL to a process group. The script must have been
// started as a group leader (Setpgid) for its descendants to be reached.
type GroupKiller struct{}

func (GroupKiller) KillGroup(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid process group %d", pid)
	}
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", pid, err)
	}
	return nil
}
