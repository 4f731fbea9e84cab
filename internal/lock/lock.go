package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside the profile directory.
const FileName = "convotui.lock"

// LockHeldError is returned when another process already has the profile open.
type LockHeldError struct {
	PID     int
	Path    string
	Program string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("profile is open in another %s (PID %d, %s)", e.Program, e.PID, e.Path)
}

// Lock is an exclusive hold on a profile directory. The interactive client
// takes it so that two terminals never share one draft store and session.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock for profileDir on behalf of program.
// It returns *LockHeldError if another process holds it.
func Acquire(profileDir, program string) (*Lock, error) {
	lockPath := filepath.Join(profileDir, FileName)

	if err := os.MkdirAll(profileDir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(lockPath)
		holder := parse(string(data))
		_ = f.Close()
		if holder.program == "" {
			holder.program = program
		}
		return nil, &LockHeldError{PID: holder.pid, Path: lockPath, Program: holder.program}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\nprogram=%s\ntime=%s\n", os.Getpid(), program, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release releases the lock. Safe to call on nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

type holder struct {
	pid     int
	program string
}

func parse(content string) holder {
	var h holder
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, "pid="); ok {
			h.pid, _ = strconv.Atoi(after)
		}
		if after, ok := strings.CutPrefix(line, "program="); ok {
			h.program = after
		}
	}
	return h
}
