package system

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSMTUnsupported is returned when simultaneous multithreading is requested
// for an in-order CPU class.
var ErrSMTUnsupported = errors.New("SMT requires an out-of-order CPU class")

// FirstPID is the PID of the first workload process.
const FirstPID = 100

// Process is a workload executable run by one or more CPU threads.
type Process struct {
	PID        int
	Executable string
	Cwd        string
	Cmd        []string
}

// ParseWorkloads splits a ";"-separated command list into processes. PIDs
// are assigned from FirstPID. The returned thread count is the number of
// processes when smt is set, 1 otherwise.
func ParseWorkloads(cmd string, smt bool, class CPUClass) ([]*Process, int, error) {
	if smt && !class.OutOfOrder {
		return nil, 0, fmt.Errorf("%w: %s", ErrSMTUnsupported, class.Name)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get working directory: %w", err)
	}

	var processes []*Process
	for _, w := range strings.Split(cmd, ";") {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		processes = append(processes, &Process{
			PID:        FirstPID + len(processes),
			Executable: w,
			Cwd:        cwd,
			Cmd:        []string{w},
		})
	}

	if len(processes) == 0 {
		return nil, 0, fmt.Errorf("no workload given")
	}

	if smt {
		return processes, len(processes), nil
	}
	return processes, 1, nil
}
