package file

import (
	"errors"
	"fmt"
	"hash/adler32"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/farwydi/sferror"
)

// NewQueueByModel opens the queue file for model's insert statement inside
// the configured workspace. A corrupted file is moved aside and a fresh queue
// is started in its place.
func NewQueueByModel(model sferror.DataModel, config ...Config) (*Queue, error) {
	// Set default config
	cfg := configDefault(config...)

	return (&queueLoader{
		cfg:               cfg,
		fileNameExtractor: regexp.MustCompile(`^(\d+)_(\d+)\.(queue|corrupted)$`),
	}).load(model)
}

type queueLoader struct {
	cfg               Config
	fileNameExtractor *regexp.Regexp
}

func (q *queueLoader) load(model sferror.DataModel) (*Queue, error) {
	if err := os.MkdirAll(q.cfg.Workspace, 0755); err != nil {
		return nil, err
	}

	h := adler32.New()
	_, _ = h.Write([]byte(model.SQL()))

	fPath := filepath.Join(q.cfg.Workspace, fmt.Sprintf("%d_0.queue", h.Sum32()))
	file, err := os.OpenFile(fPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	queue, err := NewQueue(file, model)
	if err == nil {
		return queue, nil
	}
	if !errors.Is(err, ErrCorrupted) {
		_ = file.Close()
		return nil, err
	}

	if err := q.markCorrupted(file); err != nil {
		return nil, err
	}

	file, err = os.OpenFile(fPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	queue, err = NewQueue(file, model)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return queue, nil
}

func (q *queueLoader) markCorrupted(file *os.File) error {
	err := file.Close()
	if err != nil {
		return err
	}

	name, _, n, err := q.extractName(filepath.Base(file.Name()))
	if err != nil {
		return err
	}
	corruptedFilePath := filepath.Join(q.cfg.Workspace, q.buildName(name, "corrupted", n))

	return q.move(file.Name(), corruptedFilePath)
}

func (q *queueLoader) buildName(name, t string, n int) string {
	return fmt.Sprintf("%s_%d.%s", name, n, t)
}

func (q *queueLoader) extractName(fileName string) (name, t string, n int, err error) {
	fne := q.fileNameExtractor.FindStringSubmatch(fileName)
	if len(fne) != 4 {
		return "", "", 0, fmt.Errorf("bad name: '%s'", fileName)
	}

	n, err = strconv.Atoi(fne[2])
	if err != nil {
		return "", "", 0, err
	}

	return fne[1], fne[3], n, nil
}

// move shifts next (and whatever follows it) one generation up before
// renaming prev to next. Generations past MaxHistory are removed.
func (q *queueLoader) move(prev, next string) error {
	if exists(next) {
		name, t, n, err := q.extractName(filepath.Base(next))
		if err != nil {
			return err
		}

		err = q.move(next, filepath.Join(q.cfg.Workspace, q.buildName(name, t, n+1)))
		if err != nil {
			return err
		}
	}

	_, _, n, err := q.extractName(filepath.Base(next))
	if err != nil {
		return err
	}

	if n >= q.cfg.MaxHistory {
		return os.Remove(prev)
	}

	return os.Rename(prev, next)
}

// exists reports whether a regular file is present at path.
func exists(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
