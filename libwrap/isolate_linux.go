package libwrap

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"syscall"

	"github.com/gamewrap/libwrap/configs"
	"github.com/moby/sys/mount"
	"github.com/opencontainers/runc/libcontainer/userns"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	initEnv     = "_GAMEWRAP_INIT"
	initPipeEnv = "_GAMEWRAP_INITPIPE"
)

func init() {
	// A mount namespace unshared in-process belongs to one thread only.
	// Keep main on the thread group leader so that /proc/self and execve
	// see that namespace.
	runtime.LockOSThread()
}

// IsReexec reports whether this process is a launcher re-executed inside
// new namespaces by its unprivileged parent.
func IsReexec() bool {
	return os.Getenv(initEnv) == "1"
}

// isolate moves the launcher into the namespaces of config. Without a user
// namespace the calling thread unshares its mount namespace and nil is
// returned. With a user namespace the kernel only allows this for a new
// process: the launcher is started again inside the namespaces and the
// returned initProcess must be waited on instead of continuing.
func isolate(config *configs.Config) (*initProcess, error) {
	if IsReexec() {
		// The server must not inherit the pipe, or the parent would wait
		// for it to exit before learning that the handoff succeeded.
		if _, err := initPipe(); err != nil {
			return nil, &Error{Kind: ErrIsolation, Op: "open init pipe", Err: err}
		}
		return nil, privatizeMounts()
	}
	if !config.Namespaces.Contains(configs.NEWUSER) {
		err := unix.Unshare(int(config.Namespaces.CloneFlags()))
		if err == nil {
			return nil, privatizeMounts()
		}
		if !nestUserNS(err, userns.RunningInUserNS()) {
			return nil, &Error{Kind: ErrIsolation, Op: "unshare", Err: os.NewSyscallError("unshare", err)}
		}
		// root of a user namespace that does not own the mount namespace,
		// as in most unprivileged containers.
		logrus.Debug("cannot unshare the mount namespace, creating a nested user namespace")
		config = nestedConfig(config)
	}
	return newInitProcess(config)
}

// nestUserNS reports whether a failed unshare of the mount namespace can be
// retried from a nested user namespace.
func nestUserNS(err error, inUserNS bool) bool {
	return inUserNS && errors.Is(err, unix.EPERM)
}

// nestedConfig returns a copy of config that also creates a user namespace
// mapping the current ids onto themselves.
func nestedConfig(config *configs.Config) *configs.Config {
	nested := *config
	nested.Namespaces = append(configs.Namespaces(nil), config.Namespaces...)
	nested.Namespaces.Add(configs.NEWUSER)
	nested.UIDMappings = IdentityMapping(os.Getuid())
	nested.GIDMappings = IdentityMapping(os.Getgid())
	return &nested
}

// privatizeMounts stops mounts made from now on from propagating to the
// parent namespace.
func privatizeMounts() error {
	if err := mount.MakeRSlave("/"); err != nil {
		return &Error{Kind: ErrIsolation, Op: "make mounts slave", Path: "/", Err: err}
	}
	return nil
}

// IdentityMapping maps id onto itself and nothing else.
func IdentityMapping(id int) []specs.LinuxIDMapping {
	return []specs.LinuxIDMapping{{ContainerID: uint32(id), HostID: uint32(id), Size: 1}}
}

func sysProcIDMap(mappings []specs.LinuxIDMapping) []syscall.SysProcIDMap {
	out := make([]syscall.SysProcIDMap, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, syscall.SysProcIDMap{
			ContainerID: int(m.ContainerID),
			HostID:      int(m.HostID),
			Size:        int(m.Size),
		})
	}
	return out
}

// namespaceAttr returns the attributes that start a process in the
// namespaces of config. The kernel writes "deny" to setgroups and then the
// uid and gid maps before the process runs. An identity mapped user is not
// root in the new namespace and would lose every capability at execve, so
// CAP_SYS_ADMIN is kept as an ambient capability for the mounts; Handoff
// clears it again.
func namespaceAttr(config *configs.Config) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Cloneflags:                 config.Namespaces.CloneFlags(),
		UidMappings:                sysProcIDMap(config.UIDMappings),
		GidMappings:                sysProcIDMap(config.GIDMappings),
		GidMappingsEnableSetgroups: false,
	}
	if config.Namespaces.Contains(configs.NEWUSER) {
		attr.AmbientCaps = []uintptr{unix.CAP_SYS_ADMIN}
	}
	return attr
}

var (
	initPipeOnce sync.Once
	initPipeFile *os.File
	initPipeErr  error
)

// initPipe returns the pipe inherited from the parent launcher, or nil.
// The pipe is marked close-on-exec the first time it is opened.
func initPipe() (*os.File, error) {
	initPipeOnce.Do(func() {
		v := os.Getenv(initPipeEnv)
		if v == "" {
			return
		}
		fd, err := strconv.Atoi(v)
		if err != nil {
			initPipeErr = fmt.Errorf("unable to convert %s: %w", initPipeEnv, err)
			return
		}
		unix.CloseOnExec(fd)
		initPipeFile = os.NewFile(uintptr(fd), "init")
	})
	return initPipeFile, initPipeErr
}
