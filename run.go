package tlgan

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	runLogName = "logs.txt"
)

// Run Artifacts of single training run: unique directory with append-only log, sample plots and generator checkpoints.
// Create once with NewRun and release with Close.
type Run struct {
	dir  string
	file *os.File
	w    *bufio.Writer
}

// NewRun Creates directory 'exec_<uuid>' under parent and opens its log file
func NewRun(parent string) (*Run, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return nil, errors.Wrap(err, "Can't generate run identifier")
	}
	dir := filepath.Join(parent, "exec_"+id.String())
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't create parent directory '%s'", parent))
	}
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't create run directory '%s'", dir))
	}
	f, err := os.OpenFile(filepath.Join(dir, runLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open run log")
	}
	return &Run{
		dir:  dir,
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

// Dir Returns run directory
func (r *Run) Dir() string {
	return r.dir
}

// LogPath Returns path of run log
func (r *Run) LogPath() string {
	return filepath.Join(r.dir, runLogName)
}

// PlotPath Returns path of generated images plot for 1-indexed epoch
func (r *Run) PlotPath(epoch int) string {
	return filepath.Join(r.dir, fmt.Sprintf("generated_plot_e%03d.png", epoch))
}

// CheckpointPath Returns path of generator checkpoint for 1-indexed epoch
func (r *Run) CheckpointPath(epoch int) string {
	return filepath.Join(r.dir, fmt.Sprintf("generator_model_%03d.gob", epoch))
}

// Logf Appends single line to run log
func (r *Run) Logf(format string, args ...interface{}) error {
	if r.w == nil {
		return fmt.Errorf("Run log is closed")
	}
	if _, err := fmt.Fprintf(r.w, format+"\n", args...); err != nil {
		return errors.Wrap(err, "Can't write run log")
	}
	return nil
}

// Flush Writes buffered log lines to disk
func (r *Run) Flush() error {
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		return errors.Wrap(err, "Can't flush run log")
	}
	return nil
}

// Close Flushes and closes run log. Safe to call more than once
func (r *Run) Close() error {
	if r.file == nil {
		return nil
	}
	flushErr := r.Flush()
	closeErr := r.file.Close()
	r.w = nil
	r.file = nil
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "Can't close run log")
	}
	return nil
}
