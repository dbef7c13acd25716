package libwrap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ResolveExecutable returns the absolute, symlink-free path of executable.
// Relative paths are resolved against dataRoot.
func ResolveExecutable(executable, dataRoot string) (string, error) {
	if executable == "" {
		return "", &Error{Kind: ErrHandoff, Op: "resolve executable", Err: errors.New("no executable given")}
	}
	path := executable
	if !filepath.IsAbs(path) {
		path = filepath.Join(dataRoot, executable)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", &Error{Kind: ErrHandoff, Op: "resolve executable", Path: path, Err: err}
	}
	return resolved, nil
}

// Handoff replaces the launcher with p, running in dataRoot. It returns only
// on failure.
func Handoff(p *Process, dataRoot string) error {
	if err := os.Chdir(dataRoot); err != nil {
		return &Error{Kind: ErrHandoff, Op: "chdir", Path: dataRoot, Err: err}
	}
	path, err := ResolveExecutable(p.Executable, dataRoot)
	if err != nil {
		return err
	}
	env := p.Env
	if env == nil {
		env = os.Environ()
	}
	argv := append([]string{p.argv0()}, p.Args...)
	if err := dropAmbientCaps(); err != nil {
		return &Error{Kind: ErrHandoff, Op: "drop capabilities", Err: err}
	}
	logrus.WithFields(logrus.Fields{"path": path, "argv": argv}).Debug("executing server")
	return &Error{Kind: ErrHandoff, Op: "exec", Path: path, Err: execve(path, argv, cleanEnv(env))}
}

// dropAmbientCaps clears the ambient capabilities the launcher was started
// with, so that an unprivileged server loses them at execve. Kernels
// without ambient capabilities have nothing to clear.
func dropAmbientCaps() error {
	err := unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_CLEAR_ALL, 0, 0, 0)
	if err != nil && !errors.Is(err, unix.EINVAL) {
		return os.NewSyscallError("prctl", err)
	}
	return nil
}

func execve(path string, argv, env []string) error {
	for {
		err := unix.Exec(path, argv, env)
		//nolint:errorlint // unix errors are bare
		if err != unix.EINTR {
			return os.NewSyscallError("execve", err)
		}
	}
}

// cleanEnv drops the variables used to pass state to a re-executed
// launcher.
func cleanEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, initEnv+"=") || strings.HasPrefix(kv, initPipeEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
