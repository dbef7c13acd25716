package validate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gamewrap/libwrap/configs"
	"github.com/opencontainers/runc/libcontainer/utils"
)

type check func(config *configs.Config) error

func Validate(config *configs.Config) error {
	checks := []check{
		installRoot,
		dataRoot,
		profile,
		usernamespace,
	}
	for _, c := range checks {
		if err := c(config); err != nil {
			return err
		}
	}
	return nil
}

// installRoot validates that the installation root exists, is an absolute
// path and is not a symlink to somewhere else.
func installRoot(config *configs.Config) error {
	if _, err := os.Stat(config.InstallRoot); err != nil {
		return fmt.Errorf("invalid installation root: %w", err)
	}
	cleaned, err := filepath.Abs(config.InstallRoot)
	if err != nil {
		return fmt.Errorf("invalid installation root: %w", err)
	}
	if cleaned, err = filepath.EvalSymlinks(cleaned); err != nil {
		return fmt.Errorf("invalid installation root: %w", err)
	}
	if filepath.Clean(config.InstallRoot) != cleaned {
		return errors.New("invalid installation root: not an absolute path, or a symlink")
	}
	return nil
}

func dataRoot(config *configs.Config) error {
	if !filepath.IsAbs(config.DataRoot) {
		return fmt.Errorf("invalid data root %q: not an absolute path", config.DataRoot)
	}
	data, install := filepath.Clean(config.DataRoot), filepath.Clean(config.InstallRoot)
	switch {
	case data == install:
		return errors.New("invalid data root: same as the installation root")
	case within(data, install):
		return errors.New("invalid data root: inside the installation root")
	case within(install, data):
		return errors.New("invalid data root: contains the installation root")
	}
	return nil
}

// within reports whether path is strictly below dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, "../")
}

func profile(config *configs.Config) error {
	return Profile(config.Profile)
}

// Profile checks that every path in p is relative and stays inside the
// root it is joined with.
func Profile(p *configs.Profile) error {
	if p == nil {
		return errors.New("profile must be specified")
	}
	if p.Name == "" {
		return errors.New("profile name must not be empty")
	}
	var paths []string
	for _, e := range p.Passthrough {
		paths = append(paths, e.Path)
	}
	for _, o := range p.Overlays {
		paths = append(paths, o.Path)
		if len(o.Writable) == 0 {
			return fmt.Errorf("profile %s: overlay %q has no writable locations", p.Name, o.Path)
		}
		for _, w := range o.Writable {
			if err := subpath(w); err != nil {
				return fmt.Errorf("profile %s: overlay %q: %w", p.Name, o.Path, err)
			}
		}
	}
	for _, e := range p.Redirects {
		if e.Kind == configs.KindFile {
			return fmt.Errorf("profile %s: redirect %q must be a directory", p.Name, e.Path)
		}
		paths = append(paths, e.Path)
	}
	if p.Config != "" {
		paths = append(paths, p.Config)
	}
	for _, e := range p.Seeds {
		paths = append(paths, e.Path)
	}
	for _, path := range paths {
		if err := subpath(path); err != nil {
			return fmt.Errorf("profile %s: %w", p.Name, err)
		}
	}
	return nil
}

// subpath rejects empty, absolute and escaping paths. A path is accepted
// only when it is already in its canonical form.
func subpath(path string) error {
	switch {
	case path == "" || path == ".":
		return errors.New("empty path")
	case filepath.IsAbs(path):
		return fmt.Errorf("path %q must be relative", path)
	case path == ".." || strings.HasPrefix(path, "../"):
		return fmt.Errorf("path %q escapes its root", path)
	}
	if cleaned := strings.TrimPrefix(utils.CleanPath("/"+path), "/"); cleaned != path {
		return fmt.Errorf("path %q is not clean (want %q)", path, cleaned)
	}
	return nil
}

func usernamespace(config *configs.Config) error {
	if !config.Namespaces.Contains(configs.NEWNS) {
		return errors.New("a private mount namespace is required")
	}
	if config.Namespaces.Contains(configs.NEWUSER) {
		if len(config.UIDMappings) == 0 || len(config.GIDMappings) == 0 {
			return errors.New("user namespace requires uid and gid mappings")
		}
	} else if len(config.UIDMappings) != 0 || len(config.GIDMappings) != 0 {
		return errors.New("uid/gid mappings require a user namespace")
	}
	return nil
}
