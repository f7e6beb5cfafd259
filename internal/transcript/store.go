package transcript

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Store archives a rendered transcript and returns where it went.
type Store interface {
	Save(ctx context.Context, name string, document []byte) (string, error)
}

// LocalStore writes transcripts below a directory, optionally gzip-compressed.
type LocalStore struct {
	dir      string
	compress bool
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string, compress bool) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &LocalStore{dir: dir, compress: compress}, nil
}

func (s *LocalStore) Save(ctx context.Context, name string, document []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data := document
	if s.compress {
		compressed, err := gzipBytes(document)
		if err != nil {
			return "", err
		}
		data = compressed
		name += ".gz"
	}

	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress transcript: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress transcript: %w", err)
	}
	return buf.Bytes(), nil
}
