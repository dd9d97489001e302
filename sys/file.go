package sys

import (
	"io"
	"os"
	"path/filepath"
)

// FileHandle is the subset of *os.File used by the recording writers and
// readers. Tests swap the handlers below to inject failures.
type FileHandle interface {
	io.ReadWriteCloser
	io.Seeker
	io.StringWriter

	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
	Name() string
}

type CreateHandler func(name string) (FileHandle, error)
type OpenHandler func(name string) (FileHandle, error)
type OpenFileHandler func(name string, flag int, perm os.FileMode) (FileHandle, error)
type RenameHandler func(oldpath, newpath string) error
type RemoveHandler func(name string) error

var Create CreateHandler = func(name string) (FileHandle, error) {
	return OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

var Open OpenHandler = func(name string) (FileHandle, error) {
	return OpenFile(name, os.O_RDONLY, 0)
}

var OpenFile OpenFileHandler = func(name string, flag int, perm os.FileMode) (FileHandle, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &RealFile{f: f}, nil
}

var Rename RenameHandler = os.Rename

var Remove RemoveHandler = func(name string) error {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadFile reads a whole file through Open.
func ReadFile(name string) ([]byte, error) {
	f, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFileAtomic writes data to a temporary file next to name, syncs it and
// renames it over name. Readers never observe a partially written file.
func WriteFileAtomic(name string, write func(w io.Writer) error) error {
	tmp := name + ".tmp"
	f, err := Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		Remove(tmp)
		return err
	}
	if err := Rename(tmp, name); err != nil {
		Remove(tmp)
		return err
	}
	return nil
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
