package libwrap

import (
	"fmt"
	"os"

	"github.com/gamewrap/libwrap/configs"
	"github.com/sirupsen/logrus"
)

// Launcher prepares a private view of one installation and hands off to the
// server.
type Launcher struct {
	config  *configs.Config
	plan    *Plan
	mounter Mounter
}

func (l *Launcher) Config() configs.Config {
	return *l.config
}

func (l *Launcher) Plan() *Plan {
	return l.plan
}

// Run isolates the launcher, applies the binding plan, seeds first-run
// state and executes p. It only returns on failure, or, when an
// unprivileged launcher had to start itself again inside new namespaces,
// with the exit status of the server.
func (l *Launcher) Run(p *Process) (int, error) {
	if err := os.MkdirAll(l.config.DataRoot, 0o755); err != nil {
		return -1, l.fail(&Error{Kind: ErrPrepare, Op: "create data root", Path: l.config.DataRoot, Err: err})
	}

	child, err := isolate(l.config)
	if err != nil {
		return -1, l.fail(err)
	}
	if child != nil {
		return child.run()
	}

	if err := l.prepare(); err != nil {
		return -1, l.fail(err)
	}
	return -1, l.fail(Handoff(p, l.config.DataRoot))
}

func (l *Launcher) prepare() error {
	logrus.WithFields(logrus.Fields{
		"profile":      l.config.Profile.Name,
		"install_root": l.config.InstallRoot,
		"data_root":    l.config.DataRoot,
	}).Debug("applying binding plan")
	if err := ApplyPlan(l.plan, l.mounter); err != nil {
		return fmt.Errorf("prepare %s bindings: %w", l.config.Profile.Name, err)
	}
	if err := Materialize(l.plan.Seeds); err != nil {
		return fmt.Errorf("prepare %s first-run state: %w", l.config.Profile.Name, err)
	}
	return nil
}

// fail passes err to the parent launcher when there is one.
func (l *Launcher) fail(err error) error {
	pipe, perr := initPipe()
	if perr != nil {
		logrus.WithError(perr).Warn("unable to open init pipe")
	}
	if pipe != nil {
		reportError(pipe, err)
		_ = pipe.Close()
	}
	return err
}
