//go:build !unix

package track

import (
	"errors"
	"fmt"
	"os"
)

// GroupKiller kills only the direct child on platforms without process
// groups. Descendants of the script may survive.
type GroupKiller struct{}

func (GroupKiller) KillGroup(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid process %d", pid)
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	return nil
}
