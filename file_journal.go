package sferror

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// NewFileJournal appends failed run names, one per line, to path. The parent
// directory is created when missing.
func NewFileJournal(path string, failRecordFunc func(run string, reason error)) (*FileJournal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, err
		}
	}
	if failRecordFunc == nil {
		failRecordFunc = func(_ string, _ error) {
			// Nothing
		}
	}
	return &FileJournal{
		path:           path,
		failRecordFunc: failRecordFunc,
	}, nil
}

type FileJournal struct {
	path           string
	mx             sync.Mutex
	failRecordFunc func(run string, reason error)
}

func (j *FileJournal) Path() string {
	return j.path
}

func (j *FileJournal) Record(run string, reason error) error {
	j.mx.Lock()
	defer j.mx.Unlock()

	j.failRecordFunc(run, reason)

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(run + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Pending returns the recorded runs in first-seen order without duplicates.
func (j *FileJournal) Pending() ([]string, error) {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.read()
}

func (j *FileJournal) Remove(run string) error {
	j.mx.Lock()
	defer j.mx.Unlock()

	runs, err := j.read()
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, r := range runs {
		if r == run {
			continue
		}
		b.WriteString(r)
		b.WriteByte('\n')
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, j.path)
}

func (j *FileJournal) read() ([]string, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var runs []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		run := strings.TrimSpace(sc.Text())
		if run == "" {
			continue
		}
		if _, ok := seen[run]; ok {
			continue
		}
		seen[run] = struct{}{}
		runs = append(runs, run)
	}
	return runs, sc.Err()
}
