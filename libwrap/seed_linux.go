package libwrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gamewrap/libwrap/configs"
	"github.com/gamewrap/libwrap/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Materialize copies every seed whose target does not exist yet. Existing
// targets are left alone, whatever their content.
func Materialize(seeds []Seed) error {
	for _, s := range seeds {
		if err := materialize(s); err != nil {
			return err
		}
	}
	return nil
}

func materialize(s Seed) error {
	log := logrus.WithFields(logrus.Fields{"source": s.Source, "target": s.Target})
	if _, err := os.Lstat(s.Target); err == nil {
		log.Debug("seed target exists, skipping")
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return &Error{Kind: ErrSeed, Op: "stat", Path: s.Target, Err: err}
	}

	source, err := filepath.EvalSymlinks(s.Source)
	if err != nil {
		if s.Optional && errors.Is(err, os.ErrNotExist) {
			log.Debug("skipping optional seed, source does not exist")
			return nil
		}
		return &Error{Kind: ErrSeed, Op: "resolve", Path: s.Source, Err: err}
	}

	tmp := filepath.Join(filepath.Dir(s.Target), ".seed-"+filepath.Base(s.Target))
	if err := os.RemoveAll(tmp); err != nil {
		return &Error{Kind: ErrSeed, Op: "remove stale copy", Path: tmp, Err: err}
	}
	if err := copySeed(source, tmp, s.Kind); err != nil {
		_ = os.RemoveAll(tmp)
		return &Error{Kind: ErrSeed, Op: "copy", Path: s.Source, Err: err}
	}

	err = renameNoReplace(tmp, s.Target)
	if errors.Is(err, unix.EEXIST) || errors.Is(err, unix.ENOTEMPTY) {
		log.Warn("seed target appeared while copying, keeping it")
		return os.RemoveAll(tmp)
	}
	if err != nil {
		_ = os.RemoveAll(tmp)
		return &Error{Kind: ErrSeed, Op: "rename", Path: s.Target, Err: err}
	}
	log.Info("seeded")
	return nil
}

func copySeed(source, dest string, kind configs.EntryKind) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if kind == configs.KindFile {
		if err := utils.CopyFile(source, dest); err != nil {
			return err
		}
	} else if err := utils.CopyTree(source, dest); err != nil {
		return err
	}
	return grantOwner(dest)
}

// grantOwner adds u+rwx to directories and u+rw to regular files below
// root, so the operator can always edit seeded state.
func grantOwner(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		var bits fs.FileMode
		switch {
		case d.IsDir():
			bits = 0o700
		case d.Type().IsRegular():
			bits = 0o600
		default:
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Mode().Perm()&bits == bits {
			return nil
		}
		return os.Chmod(path, fi.Mode().Perm()|bits)
	})
}

// renameNoReplace moves oldpath to newpath unless newpath exists. Kernels or
// filesystems without RENAME_NOREPLACE fall back to a plain rename, which
// for directories still refuses a non-empty target.
func renameNoReplace(oldpath, newpath string) error {
	err := unix.Renameat2(unix.AT_FDCWD, oldpath, unix.AT_FDCWD, newpath, unix.RENAME_NOREPLACE)
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOSYS) {
		return os.Rename(oldpath, newpath)
	}
	if err != nil {
		return fmt.Errorf("renameat2: %w", err)
	}
	return nil
}
