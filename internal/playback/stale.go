package playback

import (
	"fmt"
	"path/filepath"

	ps "github.com/mitchellh/go-ps"
)

// FindStalePlayers scans the process table for player processes that
// predate this run, e.g. leftovers from a crash that would hold the audio
// device. Callers log the PIDs; killing foreign processes is deliberately
// left to the operator.
func FindStalePlayers(playerBinary string) ([]int, error) {
	processes, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	base := filepath.Base(playerBinary)

	var pids []int

	for _, p := range processes {
		if p.Executable() == base {
			pids = append(pids, p.Pid())
		}
	}

	return pids, nil
}
