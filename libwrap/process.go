package libwrap

import "os"

// Process describes the server the launcher hands off to.
type Process struct {
	// Executable is the server binary. Relative paths are resolved inside
	// the data root.
	Executable string

	// Argv0 is the program name reported to the server. Empty means the
	// launcher's own invoked name.
	Argv0 string

	// Args are passed to the server unchanged.
	Args []string

	// Env is the server environment; nil means the launcher's.
	Env []string
}

func (p *Process) argv0() string {
	if p.Argv0 != "" {
		return p.Argv0
	}
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return p.Executable
}
