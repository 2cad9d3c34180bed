// Package storage keeps uploaded photo files on the local filesystem.
package storage

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	photoDir   = "photos"
	URLPrefix  = "/uploads/"
	defaultExt = ".jpg"
	filePerm   = 0o644
	dirPerm    = 0o755
	hashPrefix = 8
	idPrefix   = 8
)

var ErrInvalidPath = errors.New("storage: invalid path")

// Local stores files under root. A file saved as photos/x.jpg is served at
// /uploads/photos/x.jpg.
type Local struct {
	root string
	now  func() time.Time
}

func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(filepath.Join(root, photoDir), dirPerm); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{root: root, now: time.Now}, nil
}

// Save writes data as a new photo and returns its public URL.
func (l *Local) Save(originalName string, data []byte) (string, error) {
	name := l.fileName(originalName, data)
	path := filepath.Join(l.root, photoDir, name)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return URLPrefix + photoDir + "/" + name, nil
}

// Remove deletes the file behind url. A file that is already gone is not an
// error.
func (l *Local) Remove(url string) error {
	path, err := l.Path(url)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove photo: %w", err)
	}
	return nil
}

// Path maps a public URL or a path relative to the upload root onto the
// filesystem, rejecting anything that escapes the root.
func (l *Local) Path(url string) (string, error) {
	rel := strings.TrimPrefix(url, URLPrefix)
	if rel == "" || strings.Contains(rel, "\x00") || filepath.IsAbs(rel) {
		return "", ErrInvalidPath
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return filepath.Join(l.root, clean), nil
}

func (l *Local) fileName(originalName string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = defaultExt
	}
	sum := md5.Sum(data)
	// The random suffix keeps identical uploads in the same second apart.
	return fmt.Sprintf("%d_%s_%s%s", l.now().Unix(), hex.EncodeToString(sum[:])[:hashPrefix], uuid.NewString()[:idPrefix], ext)
}
