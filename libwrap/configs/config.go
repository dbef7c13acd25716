package configs

import "github.com/opencontainers/runtime-spec/specs-go"

// Config defines configuration options for launching a server against a
// shared installation.
type Config struct {
	// InstallRoot is the absolute path to the read-only, shared server
	// installation. It is never written to.
	InstallRoot string `json:"install_root"`

	// DataRoot is the absolute path to the instance's private, writable
	// directory. It is created if absent.
	DataRoot string `json:"data_root"`

	// Profile describes which parts of the installation the server needs
	// and how they are exposed under DataRoot.
	Profile *Profile `json:"profile"`

	// Namespaces specifies the namespaces the launcher creates before any
	// mount is performed.
	Namespaces Namespaces `json:"namespaces"`

	// UIDMappings is an array of User ID mappings for User Namespaces.
	UIDMappings []specs.LinuxIDMapping `json:"uid_mappings"`

	// GIDMappings is an array of Group ID mappings for User Namespaces.
	GIDMappings []specs.LinuxIDMapping `json:"gid_mappings"`
}
