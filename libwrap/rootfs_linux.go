package libwrap

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gamewrap/libwrap/configs"
	"github.com/moby/sys/mount"
	"github.com/sirupsen/logrus"
)

// Mounter performs bind mounts. The default implementation calls mount(2);
// tests substitute a recorder.
type Mounter interface {
	Bind(source, target string, recursive bool) error
}

type systemMounter struct{}

func (systemMounter) Bind(source, target string, recursive bool) error {
	options := "bind"
	if recursive {
		options = "rbind"
	}
	return mount.Mount(source, target, "none", options)
}

// SystemMounter returns the Mounter that performs real bind mounts in the
// calling thread's mount namespace.
func SystemMounter() Mounter {
	return systemMounter{}
}

// ApplyPlan creates the target of every binding in plan and mounts the
// source onto it, in order. It stops at the first failure.
func ApplyPlan(plan *Plan, m Mounter) error {
	if err := CheckOrder(plan); err != nil {
		return err
	}
	for _, b := range plan.Bindings {
		if err := applyBinding(b, m); err != nil {
			return err
		}
	}
	return nil
}

func applyBinding(b Binding, m Mounter) error {
	log := logrus.WithFields(logrus.Fields{
		"source":    b.Source,
		"target":    b.Target,
		"kind":      b.Kind,
		"recursive": b.Recursive,
	})
	if b.Optional {
		if _, err := os.Lstat(b.Source); errors.Is(err, os.ErrNotExist) {
			log.Debug("skipping optional binding, source does not exist")
			return nil
		}
	}
	if b.CreateSource {
		if err := ensurePath(b.Source, b.Kind); err != nil {
			return err
		}
	}
	if err := ensurePath(b.Target, b.Kind); err != nil {
		return err
	}
	log.Debug("bind mount")
	if err := m.Bind(b.Source, b.Target, b.Recursive); err != nil {
		return &Error{Kind: ErrMount, Op: "bind", Path: b.Target, Err: err}
	}
	return nil
}

// ensurePath creates path as kind unless it already exists. Existing
// entries are never modified.
func ensurePath(path string, kind configs.EntryKind) error {
	if kind == configs.KindFile {
		return ensureFile(path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &Error{Kind: ErrPrepare, Op: "create directory", Path: path, Err: err}
	}
	return nil
}

func ensureFile(path string) error {
	if _, err := os.Lstat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Error{Kind: ErrPrepare, Op: "create directory", Path: filepath.Dir(path), Err: err}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return &Error{Kind: ErrPrepare, Op: "create file", Path: path, Err: err}
	}
	return f.Close()
}
