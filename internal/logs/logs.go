// Package logs reads the daemon log file incrementally so the CLI can
// page or follow it over the API without holding the file open.
package logs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileName is the daemon log file inside the configured log directory.
const FileName = "powderlab.log"

// Path returns the daemon log location for a log directory.
func Path(logDir string) string {
	return filepath.Join(logDir, FileName)
}

// Read returns lines from the log file starting at offset, along with
// the offset to resume from. A negative offset reads the last limit
// lines of the file. A missing file yields no lines and offset zero.
func Read(path string, offset int64, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	size := info.Size()

	if offset < 0 {
		return readTail(file, size, limit)
	}
	if offset > size {
		offset = size
	}
	return readForward(file, offset, limit)
}

func readTail(file *os.File, size int64, limit int) ([]string, int64, error) {
	if limit <= 0 {
		return nil, size, nil
	}

	scanner := newLineScanner(file)
	ring := make([]string, limit)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, size, nil
}

func readForward(file *os.File, offset int64, limit int) ([]string, int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	var lines []string
	next := offset
	for limit <= 0 || len(lines) < limit {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				// A partial trailing line stays unread until the
				// writer finishes it.
				break
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		next += int64(len(line))
		lines = append(lines, line[:len(line)-1])
	}
	return lines, next, nil
}

func newLineScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}
