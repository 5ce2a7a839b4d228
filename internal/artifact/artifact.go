// Package artifact stores generated files (backups, reports) behind a small
// put/get/delete/size/url interface. The backend is a casdoor/oss
// StorageInterface, so the filesystem store used by default swaps for S3 or
// MinIO by configuration without touching callers.
package artifact

import (
	"io"
	"strings"
	"time"

	"github.com/casdoor/oss"
	"github.com/casdoor/oss/filesystem"
	"github.com/pkg/errors"
)

type Store interface {
	Put(path string, r io.Reader) error
	Get(path string) (io.ReadCloser, error)
	Delete(path string) error
	Size(path string) (int64, error)
	URL(path string) string
}

type OSS struct {
	backend oss.StorageInterface
	baseURL string
}

func NewFilesystem(baseDir, baseURL string) *OSS {
	return &OSS{backend: filesystem.New(baseDir), baseURL: strings.TrimRight(baseURL, "/")}
}

func NewWithBackend(backend oss.StorageInterface, baseURL string) *OSS {
	return &OSS{backend: backend, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *OSS) Put(path string, r io.Reader) error {
	_, err := s.backend.Put(path, r)
	return errors.Wrapf(err, "put artifact %s", path)
}

func (s *OSS) Get(path string) (io.ReadCloser, error) {
	f, err := s.backend.Get(path)
	return f, errors.Wrapf(err, "get artifact %s", path)
}

func (s *OSS) Delete(path string) error {
	return errors.Wrapf(s.backend.Delete(path), "delete artifact %s", path)
}

func (s *OSS) Size(path string) (int64, error) {
	f, err := s.backend.Get(path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat artifact %s", path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat artifact %s", path)
	}
	return st.Size(), nil
}

func (s *OSS) URL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Timestamp is the path-safe time format shared by artifact naming:
// backups/backup_company_7_full_2024-01-02_03-04-05.sql.
func Timestamp(t time.Time) string { return t.UTC().Format("2006-01-02_15-04-05") }
