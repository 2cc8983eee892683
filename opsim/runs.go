package opsim

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const runExt = ".db"

// ListRuns returns the sorted run names of the OpSim databases in dir.
func ListRuns(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), runExt) {
			continue
		}
		runs = append(runs, strings.TrimSuffix(entry.Name(), runExt))
	}
	sort.Strings(runs)
	return runs, nil
}

// RunPath is the database file of run inside dir.
func RunPath(dir, run string) string {
	return filepath.Join(dir, run+runExt)
}
