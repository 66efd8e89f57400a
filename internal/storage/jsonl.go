package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"hypercertsIndexer/internal/model"
)

// JsonlStorage appends raw log records to a JSONL file. It is safe for use
// by concurrent pairing loops.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := NewWriter(s.path, true)
	if err != nil {
		return err
	}
	for _, record := range logs {
		if err := w.Write(record); err != nil {
			w.Close()
			return fmt.Errorf("write log record: %w", err)
		}
	}
	return w.Close()
}

// Writer writes one JSON value per line.
type Writer struct {
	file   *os.File
	writer *bufio.Writer
}

// NewWriter opens path for writing, creating parent directories. The file
// is truncated unless appendMode is set.
func NewWriter(path string, appendMode bool) (*Writer, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &Writer{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *Writer) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
