package main

import (
	"fmt"
	"os"

	"github.com/gamewrap/libwrap"
	"github.com/gamewrap/libwrap/configs"
	"github.com/gamewrap/libwrap/specconv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func fatal(err error) {
	fatalWithCode(err, 1)
}

func fatalWithCode(err error, ret int) {
	// Make sure the error is written to the logger.
	logrus.Error(err)
	if !logrusToStderr() {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(ret)
}

func logrusToStderr() bool {
	l, ok := logrus.StandardLogger().Out.(*os.File)
	return ok && l.Fd() == os.Stderr.Fd()
}

func newProcess(context *cli.Context, profile *configs.Profile) (*libwrap.Process, error) {
	executable := context.String("executable")
	if executable == "" {
		executable = profile.Executable
	}
	if executable == "" {
		return nil, fmt.Errorf("profile %s has no default executable, use --executable", profile.Name)
	}
	return &libwrap.Process{
		Executable: executable,
		Argv0:      context.String("argv0"),
		Args:       context.Args(),
	}, nil
}

func createLauncher(context *cli.Context, profile *configs.Profile, installRoot string) (*libwrap.Launcher, error) {
	config, err := specconv.CreateLauncherConfig(&specconv.CreateOpts{
		Profile:     profile,
		InstallRoot: installRoot,
		DataRoot:    context.String("data-dir"),
	})
	if err != nil {
		return nil, err
	}
	return libwrap.Create(config)
}

type runner struct {
	launcher *libwrap.Launcher
	process  *libwrap.Process
}

func (r *runner) run() (int, error) {
	status, err := r.launcher.Run(r.process)
	if err != nil {
		return -1, fmt.Errorf("launch %s: %w", r.launcher.Config().Profile.Name, err)
	}
	return status, nil
}

func startLauncher(context *cli.Context, profile *configs.Profile, installRoot string) (int, error) {
	process, err := newProcess(context, profile)
	if err != nil {
		return -1, err
	}
	launcher, err := createLauncher(context, profile, installRoot)
	if err != nil {
		return -1, err
	}
	r := &runner{
		launcher: launcher,
		process:  process,
	}
	return r.run()
}
