package system

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// TaskMemoryBudget is the working set assumed for one file task: a 600 dpi
// A4 scan held as NRGBA plus its masks and label map.
const TaskMemoryBudget = 512 << 20

func InitResourceLimits(log logrus.FieldLogger) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.WithError(err).Warn("could not read the open file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.WithError(err).Warn("could not raise the open file limit")
	} else {
		log.Debugf("open file limit raised to %d", rLimit.Cur)
	}
}

// Workers returns n when positive. Otherwise it picks the number of logical
// CPUs, lowered so that every task fits TaskMemoryBudget in available memory.
// The result is at least 1.
func Workers(n int) int {
	if n > 0 {
		return n
	}

	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = 1
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		if byMem := int(vm.Available / TaskMemoryBudget); byMem < n {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ExpandInputs resolves files and glob patterns (with ** support) into a
// sorted list of distinct regular files. Patterns matching nothing are
// reported in the returned error, the other inputs are still returned.
func ExpandInputs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	var unmatched []string

	add := func(p string) {
		p = filepath.Clean(p)
		if seen[p] {
			return
		}
		fi, err := os.Stat(p)
		if err != nil || fi.IsDir() {
			return
		}
		seen[p] = true
		files = append(files, p)
	}

	for _, pattern := range patterns {
		if _, err := os.Stat(pattern); err == nil {
			before := len(files)
			add(pattern)
			if len(files) == before && !seen[filepath.Clean(pattern)] {
				unmatched = append(unmatched, pattern)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		before := len(files)
		for _, m := range matches {
			add(m)
		}
		if len(files) == before && len(matches) == 0 {
			unmatched = append(unmatched, pattern)
		}
	}

	sort.Strings(files)
	if len(unmatched) > 0 {
		return files, fmt.Errorf("no files match %q", unmatched)
	}
	return files, nil
}
