package htsdao

import (
	"context"
	"io"
	"os"

	"github.com/umccr/htsget-archive/internal/htserror"
	"github.com/umccr/htsget-archive/internal/slice"
)

// LocalDao reads plain files from disk.
type LocalDao struct {
	path      string
	indexPath string
}

// NewLocalDao opens path with the index at indexPath, or beside it when
// indexPath is empty.
func NewLocalDao(path, indexPath string) *LocalDao {
	if indexPath == "" {
		if format, err := slice.DetectFormat(path); err == nil {
			indexPath = path + slice.IndexSuffix(format)
		}
	}
	return &LocalDao{path: path, indexPath: indexPath}
}

func (dao *LocalDao) Path() string {
	return dao.path
}

func (dao *LocalDao) OpenData(_ context.Context) (DataFile, error) {
	f, err := openLocal(dao.path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, htserror.E(htserror.ServerError, "stat "+dao.path, err)
	}
	return &localFile{File: f, size: info.Size()}, nil
}

func (dao *LocalDao) OpenIndex(_ context.Context) (io.ReadCloser, error) {
	if dao.indexPath == "" {
		return nil, htserror.E(htserror.NotFound, "no index for "+dao.path, nil)
	}
	return openLocal(dao.indexPath)
}

func (dao *LocalDao) String() string {
	return "LocalDao path=" + dao.path
}

func openLocal(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, htserror.E(htserror.NotFound, path+" does not exist", err)
	}
	if err != nil {
		return nil, htserror.E(htserror.ServerError, "opening "+path, err)
	}
	return f, nil
}

type localFile struct {
	*os.File
	size int64
}

func (f *localFile) Size() int64 {
	return f.size
}
