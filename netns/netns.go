// Package netns resolves and enters network namespaces, so that nexthops
// can be managed in a namespace other than the caller's.
package netns

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// RunDir is where named namespaces are bind-mounted by "ip netns add".
const RunDir = "/var/run/netns"

// Path returns the namespace file for name. A bare name is looked up in
// RunDir; anything containing a slash is taken as a path. The empty name
// means the current namespace and yields "".
func Path(name string) string {
	if name == "" || strings.ContainsRune(name, '/') {
		return name
	}
	return filepath.Join(RunDir, name)
}

// ID returns the inode number of the network namespace at path, which
// identifies it in logs. If path is empty, the current namespace is used.
func ID(path string) (uint64, error) {
	if path == "" {
		path = "/proc/self/ns/net"
	}
	var stat syscall.Stat_t
	if err := syscall.Stat(path, &stat); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return stat.Ino, nil
}

// Open opens the namespace file at path. The caller closes it.
func Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netns %s: %w", path, err)
	}
	return f, nil
}

// Run executes fn in the network namespace specified by path.
// If path is empty, fn is executed in the current namespace (no switch).
// The original namespace is always restored after fn returns, even if fn panics.
func Run(path string, fn func() error) error {
	if path == "" {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	originalNS, err := os.Open("/proc/self/ns/net")
	if err != nil {
		return fmt.Errorf("open current netns: %w", err)
	}
	defer originalNS.Close()

	targetNS, err := Open(path)
	if err != nil {
		return err
	}
	defer targetNS.Close()

	if err := unix.Setns(int(targetNS.Fd()), unix.CLONE_NEWNET); err != nil {
		return fmt.Errorf("setns to %s: %w", path, err)
	}

	defer func() {
		// The thread is still locked; failing to switch back leaves it
		// in the target namespace until it exits.
		_ = unix.Setns(int(originalNS.Fd()), unix.CLONE_NEWNET)
	}()

	return fn()
}
