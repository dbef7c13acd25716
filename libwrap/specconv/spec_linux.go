package specconv

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gamewrap/libwrap"
	"github.com/gamewrap/libwrap/configs"
	"github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"
)

type CreateOpts struct {
	Profile     *configs.Profile
	InstallRoot string
	// DataRoot defaults to the current working directory.
	DataRoot string
	// Euid, Uid and Gid default to the launcher's own ids when nil.
	Euid *int
	Uid  *int
	Gid  *int
}

// getwd is a wrapper similar to os.Getwd, except it always gets
// the value from the kernel, which guarantees the returned value
// to be absolute and clean.
func getwd() (wd string, err error) {
	for {
		wd, err = unix.Getwd()
		//nolint:errorlint // unix errors are bare
		if err != unix.EINTR {
			break
		}
	}
	return wd, os.NewSyscallError("getwd", err)
}

func idOr(id *int, fallback func() int) int {
	if id != nil {
		return *id
	}
	return fallback()
}

// CreateLauncherConfig creates a launcher configuration from command line
// options. Relative roots are resolved against the working directory.
func CreateLauncherConfig(opts *CreateOpts) (*configs.Config, error) {
	if opts.Profile == nil {
		return nil, errors.New("profile must be specified")
	}
	if opts.InstallRoot == "" {
		return nil, errors.New("installation root must be specified")
	}
	cwd, err := getwd()
	if err != nil {
		return nil, err
	}
	abs := func(p string) string {
		if p == "" {
			return cwd
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, p)
		}
		return filepath.Clean(p)
	}

	installRoot := abs(opts.InstallRoot)
	// Bind sources are looked up through the real path; store paths are
	// often reached through symlinked profiles.
	if resolved, err := filepath.EvalSymlinks(installRoot); err == nil {
		installRoot = resolved
	}

	config := &configs.Config{
		InstallRoot: installRoot,
		DataRoot:    abs(opts.DataRoot),
		Profile:     opts.Profile,
	}
	config.Namespaces.Add(configs.NEWNS)
	// root can mount without remapping itself.
	if idOr(opts.Euid, os.Geteuid) != 0 {
		config.Namespaces.Add(configs.NEWUSER)
		config.UIDMappings = libwrap.IdentityMapping(idOr(opts.Uid, os.Getuid))
		config.GIDMappings = libwrap.IdentityMapping(idOr(opts.Gid, os.Getgid))
	}
	return config, nil
}

// ToMounts expresses the bindings of plan as OCI runtime-spec mounts.
func ToMounts(plan *libwrap.Plan) []specs.Mount {
	mounts := make([]specs.Mount, 0, len(plan.Bindings))
	for _, b := range plan.Bindings {
		option := "bind"
		if b.Recursive {
			option = "rbind"
		}
		mounts = append(mounts, specs.Mount{
			Destination: b.Target,
			Type:        "bind",
			Source:      b.Source,
			Options:     []string{option},
		})
	}
	return mounts
}
