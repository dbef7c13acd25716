package libwrap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gamewrap/libwrap/configs"
)

func TestMaterialize(t *testing.T) {
	install, data := ecoInstall(t)
	// Installations are typically read-only store paths.
	if err := os.Chmod(filepath.Join(install, "Configs/Network.eco"), 0o444); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Join(install, "Configs"), 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(install, "Configs"), 0o755) })

	plan := ecoPlan(t, install, data)
	if err := Materialize(plan.Seeds); err != nil {
		t.Fatal(err)
	}

	network := filepath.Join(data, "Configs/Network.eco")
	if got := readFile(t, network); got != `{"port": 3000}` {
		t.Errorf("unexpected Network.eco: %q", got)
	}
	fi, err := os.Stat(network)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm()&0o200 == 0 {
		t.Errorf("seeded file is not writable by its owner: %v", fi.Mode())
	}
	fi, err = os.Stat(filepath.Join(data, "Configs"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm()&0o700 != 0o700 {
		t.Errorf("seeded directory is not accessible by its owner: %v", fi.Mode())
	}
	if got := readFile(t, filepath.Join(data, "DefaultWorld")); got != "world" {
		t.Errorf("unexpected DefaultWorld: %q", got)
	}

	entries, err := os.ReadDir(data)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name()[0] == '.' {
			t.Errorf("temporary copy left behind: %s", e.Name())
		}
	}
}

func TestMaterializeOnce(t *testing.T) {
	install, data := ecoInstall(t)
	plan := ecoPlan(t, install, data)
	if err := Materialize(plan.Seeds); err != nil {
		t.Fatal(err)
	}

	network := filepath.Join(data, "Configs/Network.eco")
	writeFile(t, network, "edited by the operator")
	writeFile(t, filepath.Join(install, "Configs/Network.eco"), "updated upstream")
	writeFile(t, filepath.Join(install, "Configs/New.eco"), "new upstream")
	writeFile(t, filepath.Join(install, "DefaultWorld"), "new world")

	if err := Materialize(plan.Seeds); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, network); got != "edited by the operator" {
		t.Errorf("seeded state was overwritten: %q", got)
	}
	if _, err := os.Stat(filepath.Join(data, "Configs/New.eco")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected existing configuration to be left alone, got %v", err)
	}
	if got := readFile(t, filepath.Join(data, "DefaultWorld")); got != "world" {
		t.Errorf("seeded world was overwritten: %q", got)
	}
}

func TestMaterializeEmptyTarget(t *testing.T) {
	install, data := ecoInstall(t)
	if err := os.MkdirAll(filepath.Join(data, "Configs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Materialize(ecoPlan(t, install, data).Seeds); err != nil {
		t.Fatal(err)
	}
	// An existing directory counts as seeded, even when empty.
	if _, err := os.Stat(filepath.Join(data, "Configs/Network.eco")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected existing Configs to be kept, got %v", err)
	}
}

func TestMaterializeSymlinkedSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "store/Configs/Network.eco"), "net")
	if err := os.Symlink(filepath.Join(dir, "store/Configs"), filepath.Join(dir, "Configs")); err != nil {
		t.Fatal(err)
	}
	seed := Seed{
		Source: filepath.Join(dir, "Configs"),
		Target: filepath.Join(dir, "data/Configs"),
		Kind:   configs.KindDirectory,
	}
	if err := Materialize([]Seed{seed}); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Lstat(seed.Target)
	if err != nil {
		t.Fatal(err)
	}
	if !fi.IsDir() {
		t.Errorf("expected a copied directory, got mode %v", fi.Mode())
	}
	if got := readFile(t, filepath.Join(seed.Target, "Network.eco")); got != "net" {
		t.Errorf("unexpected content: %q", got)
	}
}

func TestMaterializeMissingSource(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		optional bool
		kind     error
	}{
		{"required", false, ErrSeed},
		{"optional", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seed := Seed{
				Source:   filepath.Join(dir, "missing"),
				Target:   filepath.Join(dir, "data", tt.name),
				Kind:     configs.KindFile,
				Optional: tt.optional,
			}
			err := Materialize([]Seed{seed})
			if tt.kind == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if _, err := os.Lstat(seed.Target); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("expected no target, got %v", err)
			}
		})
	}
}

func TestMaterializeFailedCopy(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read unreadable files")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Configs/a.eco"), "a")
	writeFile(t, filepath.Join(dir, "Configs/secret.eco"), "b")
	if err := os.Chmod(filepath.Join(dir, "Configs/secret.eco"), 0o000); err != nil {
		t.Fatal(err)
	}
	seed := Seed{
		Source: filepath.Join(dir, "Configs"),
		Target: filepath.Join(dir, "data/Configs"),
		Kind:   configs.KindDirectory,
	}
	if err := Materialize([]Seed{seed}); !errors.Is(err, ErrSeed) {
		t.Fatalf("expected ErrSeed, got %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected nothing left in the data root, got %v", entries)
	}
}

func TestMaterializeStaleCopy(t *testing.T) {
	install, data := ecoInstall(t)
	writeFile(t, filepath.Join(data, ".seed-Configs/partial"), "interrupted")
	if err := Materialize(ecoPlan(t, install, data).Seeds); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(data, "Configs/partial")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the stale copy to be discarded, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(data, ".seed-Configs")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the stale copy to be removed, got %v", err)
	}
}

func TestRenameNoReplace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), "a")
	writeFile(t, filepath.Join(dir, "b"), "b")
	if err := renameNoReplace(filepath.Join(dir, "a"), filepath.Join(dir, "b")); err == nil {
		t.Fatal("expected an error when the target exists")
	}
	if got := readFile(t, filepath.Join(dir, "b")); got != "b" {
		t.Errorf("target was replaced: %q", got)
	}
	if err := renameNoReplace(filepath.Join(dir, "a"), filepath.Join(dir, "c")); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "c")); got != "a" {
		t.Errorf("unexpected content: %q", got)
	}
}
