package configs

import "golang.org/x/sys/unix"

type NamespaceType string

const (
	NEWNS   NamespaceType = "NEWNS"
	NEWUSER NamespaceType = "NEWUSER"
)

var namespaceFlags = map[NamespaceType]uintptr{
	NEWNS:   unix.CLONE_NEWNS,
	NEWUSER: unix.CLONE_NEWUSER,
}

// Namespace defines configuration for each namespace the launcher creates.
type Namespace struct {
	Type NamespaceType `json:"type"`
}

type Namespaces []Namespace

func (n *Namespaces) index(t NamespaceType) int {
	for i, ns := range *n {
		if ns.Type == t {
			return i
		}
	}
	return -1
}

func (n *Namespaces) Contains(t NamespaceType) bool {
	return n.index(t) != -1
}

// Add appends t unless it is already present.
func (n *Namespaces) Add(t NamespaceType) {
	if !n.Contains(t) {
		*n = append(*n, Namespace{Type: t})
	}
}

// CloneFlags returns the combined clone(2) flags of all namespaces.
func (n *Namespaces) CloneFlags() uintptr {
	var flag uintptr
	for _, ns := range *n {
		flag |= namespaceFlags[ns.Type]
	}
	return flag
}
