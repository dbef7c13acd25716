package libwrap

import "errors"

// Kinds of launch failures. Every error returned by this package matches
// exactly one of them with errors.Is.
var (
	ErrIsolation = errors.New("namespace isolation failed")
	ErrPlan      = errors.New("invalid binding plan")
	ErrPrepare   = errors.New("path preparation failed")
	ErrMount     = errors.New("bind mount failed")
	ErrSeed      = errors.New("seeding failed")
	ErrHandoff   = errors.New("process handoff failed")
)

var errorKinds = map[string]error{
	"isolation": ErrIsolation,
	"plan":      ErrPlan,
	"prepare":   ErrPrepare,
	"mount":     ErrMount,
	"seed":      ErrSeed,
	"handoff":   ErrHandoff,
}

// Error records a failed launch step and the path it was operating on.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

func kindName(err error) string {
	for name, kind := range errorKinds {
		if errors.Is(err, kind) {
			return name
		}
	}
	return ""
}
