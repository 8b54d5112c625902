// Package store holds the offline client's local persistence collaborators:
// the prefetched package store and the append-only sealed-submission log.
// Both treat the filesystem as an opaque blob store keyed by exam or
// session identifier; packages stay encrypted at rest exactly as
// downloaded.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stemsi/examvault/internal/model"
)

var ErrPackageNotFound = errors.New("no package stored for exam")

// PackageStore is the local encrypted package store.
type PackageStore interface {
	Save(examCode string, pkg *model.DownloadedExamPackage) error
	Load(examCode string) (*model.DownloadedExamPackage, error)
	Clear(examCode string) error
	ClearAll() (int, error)
}

// FilePackageStore keeps one JSON blob per exam under a data directory.
type FilePackageStore struct {
	dir string
}

// NewFilePackageStore creates the backing directory if needed.
func NewFilePackageStore(dataDir string) (*FilePackageStore, error) {
	dir := filepath.Join(dataDir, "packages")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create package dir: %w", err)
	}
	return &FilePackageStore{dir: dir}, nil
}

func (s *FilePackageStore) path(examCode string) string {
	// Exam codes are caller-controlled; strip separators before using one
	// as a file name.
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '_'
		}
		return r
	}, examCode)
	return filepath.Join(s.dir, safe+".json")
}

func (s *FilePackageStore) Save(examCode string, pkg *model.DownloadedExamPackage) error {
	data, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("marshal package: %w", err)
	}
	return os.WriteFile(s.path(examCode), data, 0o600)
}

func (s *FilePackageStore) Load(examCode string) (*model.DownloadedExamPackage, error) {
	data, err := os.ReadFile(s.path(examCode))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("read package: %w", err)
	}

	var pkg model.DownloadedExamPackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("decode package: %w", err)
	}
	return &pkg, nil
}

func (s *FilePackageStore) Clear(examCode string) error {
	err := os.Remove(s.path(examCode))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FilePackageStore) ClearAll() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list packages: %w", err)
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
