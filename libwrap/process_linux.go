package libwrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/gamewrap/libwrap/configs"
	"github.com/gamewrap/libwrap/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

type filePair struct {
	parent *os.File
	child  *os.File
}

// initProcess is the launcher re-executed inside new namespaces. The
// parent keeps only the init pipe: a JSON procError arrives on it if setup
// fails, and it is closed without data once the child has executed the
// server.
type initProcess struct {
	cmd             *exec.Cmd
	messageSockPair filePair
}

// procError carries a child failure to the parent.
type procError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *procError) Error() string { return e.Message }

func (e *procError) Is(target error) bool {
	kind, ok := errorKinds[e.Kind]
	return ok && kind == target
}

func newInitProcess(config *configs.Config) (*initProcess, error) {
	parentInitPipe, childInitPipe, err := utils.NewSockPair("init")
	if err != nil {
		return nil, &Error{Kind: ErrIsolation, Op: "create init pipe", Err: err}
	}
	cmd := exec.Command("/proc/self/exe")
	cmd.Args = os.Args
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{childInitPipe}
	// ExtraFiles start at fd 3.
	cmd.Env = append(os.Environ(), initEnv+"=1", initPipeEnv+"=3")
	cmd.SysProcAttr = namespaceAttr(config)
	return &initProcess{
		cmd:             cmd,
		messageSockPair: filePair{parentInitPipe, childInitPipe},
	}, nil
}

func (p *initProcess) pid() int {
	return p.cmd.Process.Pid
}

// run starts the child, waits for it to hand off to the server and then
// acts as a shim: signals are forwarded and the server's exit status is
// returned.
func (p *initProcess) run() (int, error) {
	signals := make(chan os.Signal, 128)
	signal.Notify(signals)
	defer func() {
		signal.Stop(signals)
		close(signals)
	}()

	if err := p.start(); err != nil {
		return -1, err
	}
	go p.forward(signals)
	return p.wait()
}

func (p *initProcess) start() error {
	defer p.messageSockPair.parent.Close()
	err := p.cmd.Start()
	_ = p.messageSockPair.child.Close()
	if err != nil {
		return &Error{Kind: ErrIsolation, Op: "start launcher in new namespaces", Err: err}
	}
	logrus.WithField("pid", p.pid()).Debug("started launcher in new namespaces")

	if err := <-initWaiter(p.messageSockPair.parent); err != nil {
		_ = p.cmd.Wait()
		return err
	}
	logrus.WithField("pid", p.pid()).Debug("server started")
	return nil
}

func (p *initProcess) forward(signals <-chan os.Signal) {
	for s := range signals {
		switch s {
		case unix.SIGCHLD, unix.SIGURG:
			// SIGURG is used by the Go runtime for preemption.
			continue
		}
		if err := p.cmd.Process.Signal(s); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logrus.WithError(err).Warnf("unable to forward %s", s)
		}
	}
}

func (p *initProcess) wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, fmt.Errorf("waiting for server: %w", err)
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}

func initWaiter(r io.Reader) chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)

		var perr procError
		err := json.NewDecoder(r).Decode(&perr)
		if err == nil {
			ch <- &perr
			return
		}
		if errors.Is(err, io.EOF) {
			ch <- nil
			return
		}
		ch <- fmt.Errorf("waiting for launcher setup: %w", err)
	}()
	return ch
}

// reportError sends err to the parent launcher.
func reportError(w io.Writer, err error) {
	perr := procError{Kind: kindName(err), Message: err.Error()}
	if werr := json.NewEncoder(w).Encode(perr); werr != nil {
		logrus.WithError(werr).Error("unable to report setup failure")
	}
}
