package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/gantry/internal/errors"
)

// StepOutput is the captured output of one executed step.
type StepOutput struct {
	Step   string
	Output []byte
}

// StepLog writes one log file per executed step, numbered in run order.
// It is owned by a single runner; writes are not synchronized.
type StepLog struct {
	dir     string
	seq     int
	current *os.File
}

// JobLog opens the log sink for one job. Numbering continues after any
// step files already present.
func (s *Store) JobLog(project string, id int, job string) (*StepLog, error) {
	dir := s.logDir(project, id, job)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreWrite, "create log directory", err)
	}

	seq := 0
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "scan log directory", err)
	}
	for _, e := range entries {
		if n, _, ok := parseStepFileName(e.Name()); ok && n > seq {
			seq = n
		}
	}

	return &StepLog{dir: dir, seq: seq}, nil
}

// StartStep closes the previous step file and opens the next one. The
// returned writer interleaves stdout and stderr in arrival order; the
// caller feeds both streams into it.
func (l *StepLog) StartStep(name string) (io.Writer, error) {
	if err := l.closeCurrent(); err != nil {
		return nil, err
	}
	l.seq++
	path := filepath.Join(l.dir, fmt.Sprintf("%02d_%s.log", l.seq, name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreWrite, "open step log", err)
	}
	l.current = f
	return f, nil
}

// Close flushes and closes the active step file.
func (l *StepLog) Close() error {
	return l.closeCurrent()
}

func (l *StepLog) closeCurrent() error {
	if l.current == nil {
		return nil
	}
	err := l.current.Close()
	l.current = nil
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "close step log", err)
	}
	return nil
}

// ReadJobLog returns the executed steps of a job in run order with their
// captured output. A job that never ran has no log directory and yields
// an empty slice.
func (s *Store) ReadJobLog(project string, id int, job string) ([]StepOutput, error) {
	dir := s.logDir(project, id, job)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "scan log directory", err)
	}

	type numbered struct {
		n    int
		step string
		path string
	}
	var files []numbered
	for _, e := range entries {
		n, step, ok := parseStepFileName(e.Name())
		if !ok {
			continue
		}
		files = append(files, numbered{n: n, step: step, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	outputs := make([]StepOutput, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreRead, "read step log", err)
		}
		outputs = append(outputs, StepOutput{Step: f.step, Output: data})
	}
	return outputs, nil
}

// parseStepFileName splits "NN_<step>.log" into its run order and step
// name.
func parseStepFileName(name string) (int, string, bool) {
	if !strings.HasSuffix(name, ".log") {
		return 0, "", false
	}
	base := strings.TrimSuffix(name, ".log")
	idx := strings.Index(base, "_")
	if idx <= 0 {
		return 0, "", false
	}
	n, err := strconv.Atoi(base[:idx])
	if err != nil || n <= 0 {
		return 0, "", false
	}
	return n, base[idx+1:], true
}
