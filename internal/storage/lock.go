package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// WriterLockFile is created inside a plan root while a process mutates it.
const WriterLockFile = ".writer-lock"

// ErrLocked is returned when another live process holds the writer lock.
var ErrLocked = errors.New("plan root is locked by another process")

// WriterLock is the lock file format. The in-process store serializes
// applies per project; this extends that to other processes sharing a root.
type WriterLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// AcquireWriterLock claims the writer lock on root. A lock left by a dead
// process on this host is taken over. Returns the lock path for release.
func AcquireWriterLock(root, holder string) (string, error) {
	lockPath := filepath.Join(root, WriterLockFile)

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing WriterLock
		if json.Unmarshal(data, &existing) == nil && isProcessAlive(existing.PID, existing.Hostname) {
			return "", fmt.Errorf("%w: %s (PID %d on %s, started %s)",
				ErrLocked, existing.Holder, existing.PID, existing.Hostname,
				existing.StartedAt.Format(time.RFC3339))
		}
		// Stale lock - will overwrite
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	data, err := json.MarshalIndent(WriterLock{
		Holder:    holder,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", root, err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create writer lock: %w", err)
	}
	return lockPath, nil
}

// ReleaseWriterLock removes the lock file. Safe to call with "".
func ReleaseWriterLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove writer lock: %w", err)
	}
	return nil
}

// isProcessAlive reports whether pid exists on hostname. Remote hosts and
// unverifiable processes count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes without delivering anything
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM: exists but not ours
	return errors.Is(err, syscall.EPERM)
}
