package host

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"kleinimg/internal/common"
)

// ErrNotImage is returned when importing bytes that are not a known image type.
var ErrNotImage = errors.New("not an image")

// ImageStore keeps image blobs in a directory, one file per content hash.
type ImageStore struct {
	dir string
}

// NewImageStore opens the store rooted at dir, creating it if needed.
func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, common.DefaultFilePermissions); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Hash returns the content hash images are stored under.
func Hash(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Put stores data and returns its hash. Storing the same bytes twice is a
// no-op.
func (s *ImageStore) Put(data []byte) (string, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown || !filetype.IsImage(data) {
		return "", ErrNotImage
	}

	hash := Hash(data)
	if _, err := s.Path(hash); err == nil {
		return hash, nil
	}

	path := filepath.Join(s.dir, hash+"."+kind.Extension)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", hash, err)
	}
	return hash, nil
}

// Import stores the image file at path.
func (s *ImageStore) Import(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	hash, err := s.Put(data)
	if err != nil {
		return "", fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	return hash, nil
}

// Get returns the bytes stored under hash.
func (s *ImageStore) Get(hash string) ([]byte, error) {
	path, err := s.Path(hash)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Path returns the file holding hash. Files may be stored with or without an
// extension.
func (s *ImageStore) Path(hash string) (string, error) {
	if hash == "" || strings.ContainsAny(hash, `/\.*?[`) {
		return "", fmt.Errorf("invalid image hash %q: %w", hash, common.ErrImageNotFound)
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, hash+"*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		name := filepath.Base(m)
		if name == hash || strings.HasPrefix(name, hash+".") {
			return m, nil
		}
	}
	return "", fmt.Errorf("image %s: %w", hash, common.ErrImageNotFound)
}
