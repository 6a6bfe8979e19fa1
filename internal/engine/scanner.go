package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"regexp"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the block size used when reading a file backward.
const DefaultChunkSize = 64 * 1024

const lineTerminators = "\r\n"

// File is the subset of *os.File the Scanner reads through.
type File interface {
	io.ReaderAt
	io.Closer
	Stat() (fs.FileInfo, error)
}

// OpenFunc opens a file for reading.
type OpenFunc func(name string) (File, error)

func openOS(name string) (File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ScanStats reports the I/O performed by a single Scan.
type ScanStats struct {
	Chunks int
	Bytes  int64
}

// Scanner reads a file from its end toward its beginning in fixed-size chunks
// and collects the most recent lines matching a filter.
type Scanner struct {
	ChunkSize int
	Open      OpenFunc
}

// NewScanner creates a Scanner reading chunkSize bytes at a time.
// A non-positive chunkSize selects DefaultChunkSize.
func NewScanner(chunkSize int) *Scanner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Scanner{ChunkSize: chunkSize, Open: openOS}
}

// Scan returns at most target lines from path, most recent first. Blank lines
// never count. When filter is non-nil only lines it matches are collected.
//
// The file is opened only when target > 0, and it is closed before Scan returns.
// On error no lines are returned.
func (s *Scanner) Scan(ctx context.Context, path string, target int, filter *regexp.Regexp) ([]string, ScanStats, error) {
	var stats ScanStats
	if target < 0 {
		return nil, stats, newError(KindInvalidArgument, "count", "", errors.Errorf("count must be non-negative, got %d", target))
	}
	if target == 0 {
		return []string{}, stats, nil
	}

	open := s.Open
	if open == nil {
		open = openOS
	}
	f, err := open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, stats, newError(KindNotFound, "open", path, err)
		}
		return nil, stats, newError(KindIO, "open", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, stats, newError(KindIO, "stat", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, stats, newError(KindNotFound, "stat", path, errors.New("not a regular file"))
	}

	chunkSize := int64(s.ChunkSize)
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	lines := make([]string, 0, min(target, 1024))
	var leftover []byte
	cursor := info.Size()

	for len(lines) < target && cursor > 0 {
		if err := ctx.Err(); err != nil {
			return nil, stats, newError(KindIO, "read", path, err)
		}

		readLen := min(chunkSize, cursor)
		cursor -= readLen

		text := make([]byte, readLen, readLen+int64(len(leftover)))
		n, err := f.ReadAt(text, cursor)
		if n < len(text) {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, stats, newError(KindIO, "read", path, errors.Wrapf(err, "read %d bytes at offset %d", readLen, cursor))
		}
		stats.Chunks++
		stats.Bytes += int64(n)

		// The fragment carried from the later chunk completes this chunk's last line.
		text = append(text, leftover...)

		first := bytes.IndexAny(text, lineTerminators)
		if first < 0 {
			leftover = text
		} else {
			leftover = text[:first]
			lines = collectNewestFirst(lines, text[first+1:], target, filter)
		}

		// At the start of the file the held-back fragment is a complete line.
		if cursor == 0 && len(lines) < target {
			lines = appendMatch(lines, leftover, filter)
		}
	}

	return lines, stats, nil
}

// collectNewestFirst walks block from its last line to its first, appending
// qualifying lines until lines holds target entries.
func collectNewestFirst(lines []string, block []byte, target int, filter *regexp.Regexp) []string {
	end := len(block)
	for end >= 0 && len(lines) < target {
		start := bytes.LastIndexAny(block[:end], lineTerminators) + 1
		lines = appendMatch(lines, block[start:end], filter)
		end = start - 1
	}
	return lines
}

func appendMatch(lines []string, line []byte, filter *regexp.Regexp) []string {
	if len(line) == 0 {
		return lines
	}
	if filter != nil && !filter.Match(line) {
		return lines
	}
	return append(lines, string(line))
}
