package daemon

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// InstanceLock is the advisory single-instance file lock of §4.4/§6.4: the
// daemon writes its PID into the lock file for debugging, and a failed
// Flock means another daemon instance already serves the device.
type InstanceLock struct {
	file *os.File
}

// AcquireInstanceLock opens path, takes a non-blocking exclusive flock, and
// writes the current PID. Callers must Release on shutdown.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("daemon: open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("daemon: another instance holds %s: %w", path, err)
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.WriteString(fmt.Sprintf("%d\n", os.Getpid())); err != nil {
		f.Close()
		return nil, err
	}
	return &InstanceLock{file: f}, nil
}

func (l *InstanceLock) Release() error {
	if l.file == nil {
		return nil
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
