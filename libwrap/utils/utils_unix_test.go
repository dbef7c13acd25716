package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestNewSockPair(t *testing.T) {
	parent, child, err := NewSockPair("test")
	if err != nil {
		t.Fatal(err)
	}
	defer parent.Close()
	defer child.Close()

	// Check unix.SOCK_STREAM works
	// parent -> child
	parentMessage := "Test message from parent"
	if _, err := parent.Write([]byte(parentMessage)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1024)
	len, err := child.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	childMessage := string(buf[:len])
	if parentMessage != childMessage {
		t.Errorf("Got: %s, but expected: %s", childMessage, parentMessage)
	}
	// child -> parent
	childMessage = "Test message from child"
	if _, err := child.Write([]byte(childMessage)); err != nil {
		t.Fatal(err)
	}
	buf = make([]byte, 1024)
	len, err = parent.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	parentMessage = string(buf[:len])
	if parentMessage != childMessage {
		t.Errorf("Got: %s, but expected: %s", parentMessage, childMessage)
	}

	// Check unix.SOCK_CLOEXEC works
	var out bytes.Buffer
	cmd := exec.Command("/bin/sh", "-c", "ls -l /proc/self/fd")
	cmd.Stdout = &out
	if err = cmd.Run(); err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(out.Bytes(), []byte(fmt.Sprintf(" %d ->", child.Fd()))) || bytes.Contains(out.Bytes(), []byte(fmt.Sprintf(" %d ->", parent.Fd()))) {
		fmt.Printf("parent: %v, child: %v \n", parent.Fd(), child.Fd())
		fmt.Println(out.String())
		t.Error("Child socket file descriptor was not closed by exec")
	}
}

func TestCopyTree(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Configs")
	if err := os.MkdirAll(filepath.Join(src, "Sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "Network.eco"), []byte(`{"Port":3000}`), 0o444); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "Sub", "Nested.eco"), []byte("nested"), 0o640); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("Network.eco", filepath.Join(src, "Link.eco")); err != nil {
		t.Fatal(err)
	}
	// Read-only directories must still be copied into.
	if err := os.Chmod(filepath.Join(src, "Sub"), 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(filepath.Join(src, "Sub"), 0o755) //nolint:errcheck

	dst := filepath.Join(t.TempDir(), "Configs")
	if err := CopyTree(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "Network.eco"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"Port":3000}` {
		t.Errorf("Got: %s, but expected the source content", got)
	}
	fi, err := os.Stat(filepath.Join(dst, "Network.eco"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o444 {
		t.Errorf("file mode: got %v, want %v", fi.Mode().Perm(), os.FileMode(0o444))
	}
	fi, err = os.Stat(filepath.Join(dst, "Sub"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o755 {
		t.Errorf("dir mode: got %v, want %v", fi.Mode().Perm(), os.FileMode(0o755))
	}
	if _, err := os.Stat(filepath.Join(dst, "Sub", "Nested.eco")); err != nil {
		t.Error(err)
	}
	link, err := os.Readlink(filepath.Join(dst, "Link.eco"))
	if err != nil {
		t.Fatal(err)
	}
	if link != "Network.eco" {
		t.Errorf("symlink target: got %q, want %q", link, "Network.eco")
	}
}

func TestCopyTreeExistingDest(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	if err := CopyTree(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Errorf("expected ErrExist, got %v", err)
	}
}

func TestCopyFileRejectsDirectory(t *testing.T) {
	src := t.TempDir()
	if err := CopyFile(src, filepath.Join(t.TempDir(), "out")); err == nil {
		t.Error("expected an error when copying a directory")
	}
}
