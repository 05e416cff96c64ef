package video

import (
	"fmt"
	"os"
)

// Store stages uploaded videos on disk because container demuxers need a
// seekable file path. Files live only as long as the request.
type Store struct {
	dir string
}

// NewStore uses the OS temp directory when dir is empty.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Stage writes data to a fresh file and returns its path plus a cleanup
// func that must be called when the request is done.
func (s *Store) Stage(data []byte, ext string) (string, func(), error) {
	f, err := os.CreateTemp(s.dir, "faceverify-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp video: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp video: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp video: %w", err)
	}
	return path, cleanup, nil
}
