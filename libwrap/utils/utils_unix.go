package utils

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func NewSockPair(name string) (parent *os.File, child *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_LOCAL, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, err
	}
	return os.NewFile(uintptr(fds[1]), name+"-p"), os.NewFile(uintptr(fds[0]), name+"-c"), nil
}

// CopyFile copies the regular file source to dest, which must not exist.
// The permission bits of source are kept, ownership is not.
func CopyFile(source, dest string) error {
	sf, err := os.Open(source)
	if err != nil {
		return err
	}
	defer sf.Close()

	fi, err := sf.Stat()
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", source)
	}
	df, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(df, sf); err != nil {
		df.Close()
		return err
	}
	if err := df.Close(); err != nil {
		return err
	}
	// O_CREAT is subject to the umask.
	return os.Chmod(dest, fi.Mode().Perm())
}

// CopyTree recursively copies the directory source to dest, which must not
// exist. Regular files are copied with their permission bits, directories
// additionally get u+rwx so that they can be filled. Symlinks are recreated
// with the same target. Other file types are skipped.
func CopyTree(source, dest string) error {
	return filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch mode := d.Type(); {
		case mode.IsDir():
			fi, err := d.Info()
			if err != nil {
				return err
			}
			perm := fi.Mode().Perm() | 0o700
			if err := os.Mkdir(target, perm); err != nil {
				return err
			}
			return os.Chmod(target, perm)
		case mode&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case mode.IsRegular():
			return CopyFile(path, target)
		default:
			return nil
		}
	})
}
