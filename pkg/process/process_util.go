// Copyright (c) Microsoft Corporation. All rights reserved.

package process

import (
	"errors"
	"fmt"
	"math"

	ps "github.com/shirou/gopsutil/v4/process"
)

// Essentially the same as ps.ErrorProcessNotRunning, but we do not want to
// expose the ps package outside of this package.
var ErrorProcessNotFound = errors.New("process does not exist")

// Returns the list of ID for a given process and its children
// The list is ordered starting with the root of the hierarchy, then the children, then the grandchildren etc.
func GetProcessTree(rootPid Pid_t) ([]Pid_t, error) {
	root, err := ps.NewProcess(int32(rootPid))
	if err != nil {
		if errors.Is(err, ps.ErrorProcessNotRunning) {
			return nil, ErrorProcessNotFound
		}
		return nil, err
	}

	tree := []Pid_t{}
	next := []*ps.Process{root}

	for len(next) > 0 {
		current := next[0]
		next = next[1:]
		tree = append(tree, Pid_t(current.Pid))

		children, childrenErr := current.Children()
		if childrenErr != nil {
			// If we fail to get the children, assume there are no children.
			children = []*ps.Process{}
		}

		next = append(next, children...)
	}

	return tree, nil
}

func IntToPidT(val int) (Pid_t, error) {
	if val < 0 || val > math.MaxInt32 {
		return UnknownPID, fmt.Errorf("value %d is not a valid process ID", val)
	}
	return Pid_t(val), nil
}

func Int64ToPidT(val int64) (Pid_t, error) {
	if val < 0 || val > math.MaxInt32 {
		return UnknownPID, fmt.Errorf("value %d is not a valid process ID", val)
	}
	return Pid_t(val), nil
}

func PidT_ToInt(val Pid_t) (int, error) {
	if val < 0 {
		return 0, fmt.Errorf("value %d is not a valid process ID", val)
	}
	return int(val), nil
}
