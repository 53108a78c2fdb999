package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/quarkdb/flux/core"
)

// fileWriter owns the trace file on the writer's pool goroutine. It opens
// files named <base>.<index>.<ext> with a monotonically increasing index
// chosen to skip existing files, rolls to the next index when the current
// file exceeds rollSize, and prunes the oldest files once the total size of
// the base's files exceeds maxLogsSize.
type fileWriter struct {
	dir         string
	base        string
	formatter   Formatter
	rollSize    int64
	maxLogsSize int64

	file    *os.File
	index   int
	written int64
}

var _ core.Receiver = (*fileWriter)(nil)

func newFileWriter(dir, base string, formatter Formatter, rollSize, maxLogsSize int64) *fileWriter {
	return &fileWriter{
		dir:         dir,
		base:        base,
		formatter:   formatter,
		rollSize:    rollSize,
		maxLogsSize: maxLogsSize,
	}
}

// Init runs on the writer goroutine before the first batch.
func (w *fileWriter) Init() {
	w.openNext()
}

// Destroy closes the current file on the writer goroutine.
func (w *fileWriter) Destroy() {
	w.closeFile()
}

func (w *fileWriter) fileName(index int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s.%d.%s", w.base, index, w.formatter.Extension()))
}

// openNext picks the next unused index at or after w.index+1 and opens it.
func (w *fileWriter) openNext() {
	index := w.index + 1
	for {
		if _, err := os.Stat(w.fileName(index)); os.IsNotExist(err) {
			break
		}
		index++
	}
	f, err := os.OpenFile(w.fileName(index), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		// Keep going without a file; writes become drops until the next roll.
		w.file = nil
		return
	}
	w.index = index
	w.file = f
	w.written = 0
	if h := w.formatter.Header(); h != "" {
		n, _ := f.WriteString(h)
		w.written += int64(n)
	}
	w.prune()
}

func (w *fileWriter) closeFile() {
	if w.file == nil {
		return
	}
	if ft := w.formatter.Footer(); ft != "" {
		w.file.WriteString(ft)
	}
	w.file.Sync()
	w.file.Close()
	w.file = nil
}

// writeBatch formats and durably writes a batch of events, rolling first if
// the current file is over the roll threshold.
func (w *fileWriter) writeBatch(batch []Fields) *core.Error {
	if w.rollSize > 0 && w.written > w.rollSize {
		w.closeFile()
		w.openNext()
	}
	if w.file == nil {
		return core.ErrIOError()
	}
	for _, fields := range batch {
		n, err := w.file.WriteString(w.formatter.FormatEvent(fields))
		w.written += int64(n)
		if err != nil {
			return core.ErrIOError()
		}
	}
	if err := w.file.Sync(); err != nil {
		return core.ErrIOError()
	}
	return nil
}

// prune deletes the oldest of this base's files while their total size
// exceeds maxLogsSize. The current file is never deleted.
func (w *fileWriter) prune() {
	if w.maxLogsSize <= 0 {
		return
	}
	prefix := w.base + "."
	suffix := "." + w.formatter.Extension()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	type logFile struct {
		index int
		name  string
		size  int64
	}
	var files []logFile
	var total int64
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		mid := name[len(prefix) : len(name)-len(suffix)]
		index, err := strconv.Atoi(mid)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{index: index, name: name, size: info.Size()})
		total += info.Size()
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	for _, f := range files {
		if total <= w.maxLogsSize || f.index == w.index {
			break
		}
		if os.Remove(filepath.Join(w.dir, f.name)) == nil {
			total -= f.size
		}
	}
}
