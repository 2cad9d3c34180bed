package storage

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	l.now = func() time.Time { return time.Unix(1700000000, 0) }
	return l
}

func TestSaveNamesAndWritesFile(t *testing.T) {
	l := newTestLocal(t)

	url, err := l.Save("IMG_0001.JPG", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !regexp.MustCompile(`^/uploads/photos/1700000000_[0-9a-f]{8}_[0-9a-f]{8}\.jpg$`).MatchString(url) {
		t.Fatalf("unexpected url %q", url)
	}

	path, err := l.Path(url)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("read back: %q %v", data, err)
	}
}

func TestSaveDefaultExtension(t *testing.T) {
	l := newTestLocal(t)
	url, err := l.Save("noext", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Ext(url) != ".jpg" {
		t.Fatalf("expected .jpg, got %q", url)
	}
}

func TestSaveDistinctContentDistinctNames(t *testing.T) {
	l := newTestLocal(t)
	a, _ := l.Save("a.png", []byte("one"))
	b, _ := l.Save("b.png", []byte("two"))
	if a == b {
		t.Fatalf("expected distinct names, both %q", a)
	}
}

func TestSaveSameContentSameSecond(t *testing.T) {
	l := newTestLocal(t)
	a, err := l.Save("a.jpg", []byte("same"))
	if err != nil {
		t.Fatalf("save a: %v", err)
	}
	b, err := l.Save("a.jpg", []byte("same"))
	if err != nil {
		t.Fatalf("save b: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct names, both %q", a)
	}

	if err := l.Remove(a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	path, _ := l.Path(b)
	if data, err := os.ReadFile(path); err != nil || string(data) != "same" {
		t.Fatalf("second upload lost: %q %v", data, err)
	}
}

func TestRemove(t *testing.T) {
	l := newTestLocal(t)
	url, err := l.Save("a.heic", []byte("heic"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := l.Remove(url); err != nil {
		t.Fatalf("remove: %v", err)
	}
	path, _ := l.Path(url)
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present")
	}
	// Already gone.
	if err := l.Remove(url); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	l := newTestLocal(t)
	for _, bad := range []string{"", "/uploads/", "/uploads/../secret", "../../etc/passwd", "/etc/passwd", "photos/../../x"} {
		if _, err := l.Path(bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("path %q: expected ErrInvalidPath, got %v", bad, err)
		}
	}
	if err := l.Remove("/uploads/../../etc/passwd"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("remove traversal: %v", err)
	}
}
