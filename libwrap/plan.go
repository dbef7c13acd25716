package libwrap

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gamewrap/libwrap/configs"
)

// Binding is a single bind mount of Source onto Target.
type Binding struct {
	Source    string            `json:"source"`
	Target    string            `json:"target"`
	Kind      configs.EntryKind `json:"kind"`
	Recursive bool              `json:"recursive,omitempty"`

	// CreateSource marks bindings whose source is writable state under the
	// data root; it is created like a target when absent.
	CreateSource bool `json:"create_source,omitempty"`

	// Optional bindings are skipped when their source does not exist.
	Optional bool `json:"optional,omitempty"`
}

// Seed is state copied once from the installation into the data root.
type Seed struct {
	Source   string            `json:"source"`
	Target   string            `json:"target"`
	Kind     configs.EntryKind `json:"kind"`
	Optional bool              `json:"optional,omitempty"`
}

// Plan is the ordered list of bindings and seeds for one launch.
type Plan struct {
	Bindings []Binding `json:"bindings"`
	Seeds    []Seed    `json:"seeds"`
}

// CreatePlan computes the bindings and seeds for profile. It does not touch
// the filesystem. Bindings are ordered so that no binding hides another:
// nested targets come after the binding they are nested in, and bindings
// onto a subtree that is later bound recursively come before that
// recursive binding.
func CreatePlan(profile *configs.Profile, installRoot, dataRoot string) (*Plan, error) {
	var bindings []Binding
	for _, e := range profile.Passthrough {
		bindings = append(bindings, Binding{
			Source:   filepath.Join(installRoot, e.Path),
			Target:   filepath.Join(dataRoot, e.Path),
			Kind:     entryKind(e.Kind),
			Optional: e.Optional,
		})
	}
	for _, o := range profile.Overlays {
		for _, w := range o.Writable {
			sub := filepath.Join(o.Path, w)
			bindings = append(bindings, Binding{
				Source:       filepath.Join(dataRoot, sub),
				Target:       filepath.Join(installRoot, sub),
				Kind:         configs.KindDirectory,
				CreateSource: true,
			})
		}
		bindings = append(bindings, Binding{
			Source:    filepath.Join(installRoot, o.Path),
			Target:    filepath.Join(dataRoot, o.Path),
			Kind:      configs.KindDirectory,
			Recursive: true,
		})
	}
	for _, e := range profile.Redirects {
		bindings = append(bindings, Binding{
			Source:       filepath.Join(dataRoot, e.Path),
			Target:       filepath.Join(installRoot, e.Path),
			Kind:         configs.KindDirectory,
			CreateSource: true,
		})
	}

	ordered, err := orderBindings(bindings)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Bindings: ordered}
	if profile.Config != "" {
		plan.Seeds = append(plan.Seeds, Seed{
			Source: filepath.Join(installRoot, profile.Config),
			Target: filepath.Join(dataRoot, profile.Config),
			Kind:   configs.KindDirectory,
		})
	}
	for _, e := range profile.Seeds {
		plan.Seeds = append(plan.Seeds, Seed{
			Source:   filepath.Join(installRoot, e.Path),
			Target:   filepath.Join(dataRoot, e.Path),
			Kind:     entryKind(e.Kind),
			Optional: e.Optional,
		})
	}
	return plan, nil
}

func entryKind(k configs.EntryKind) configs.EntryKind {
	if k == "" {
		return configs.KindDirectory
	}
	return k
}

// mustPrecede reports whether a has to be applied before b.
func mustPrecede(a, b Binding) bool {
	if a.Target == b.Target {
		return false
	}
	// b is mounted inside a's target; mounting a later would shadow b.
	if isWithin(b.Target, a.Target) {
		return true
	}
	// a is mounted inside the tree b recursively exposes; b carries it
	// only if a is already there.
	if b.Recursive && isWithin(a.Target, b.Source) {
		return true
	}
	return false
}

// orderBindings sorts bindings topologically by mustPrecede. Among
// bindings that are free to go, the one listed first wins, so an already
// valid order is kept unchanged.
func orderBindings(bindings []Binding) ([]Binding, error) {
	n := len(bindings)
	indegree := make([]int, n)
	after := make([][]int, n)
	for i := range bindings {
		for j := range bindings {
			if i != j && mustPrecede(bindings[i], bindings[j]) {
				after[i] = append(after[i], j)
				indegree[j]++
			}
		}
	}

	ordered := make([]Binding, 0, n)
	done := make([]bool, n)
	for len(ordered) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			var cycle []string
			for i := range bindings {
				if !done[i] {
					cycle = append(cycle, bindings[i].Target)
				}
			}
			return nil, &Error{
				Kind: ErrPlan,
				Op:   "order bindings",
				Err:  fmt.Errorf("bindings hide each other: %s", strings.Join(cycle, ", ")),
			}
		}
		done[next] = true
		ordered = append(ordered, bindings[next])
		for _, j := range after[next] {
			indegree[j]--
		}
	}
	return ordered, nil
}

// CheckOrder verifies that no binding in plan is hidden by a later one.
func CheckOrder(plan *Plan) error {
	for i, a := range plan.Bindings {
		for _, b := range plan.Bindings[i+1:] {
			if mustPrecede(b, a) {
				return &Error{
					Kind: ErrPlan,
					Op:   "check order",
					Path: a.Target,
					Err:  fmt.Errorf("hidden by later binding of %s onto %s", b.Source, b.Target),
				}
			}
		}
	}
	return nil
}

// isWithin reports whether path is strictly below dir.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, "../")
}
