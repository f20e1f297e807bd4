// Package artifact manages the temporary address-list files handed to
// analysis binaries. Every file is scoped to a single request and removed
// on every exit path.
package artifact

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manager creates and removes per-request address files under dir.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager returns a Manager writing under dir (os.TempDir() when empty).
func NewManager(dir string, logger *slog.Logger) *Manager {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{dir: dir, logger: logger}
}

// WithAddressFile writes addresses one per line to a uniquely named file,
// invokes fn with its path, and removes the file before returning — whether
// fn succeeded, failed, or the write itself failed partway. A removal
// failure is logged and never alters fn's result.
func (m *Manager) WithAddressFile(addresses []string, router, slug string, fn func(path string) error) error {
	path := m.tempPath(router, slug)

	data := strings.Join(addresses, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		m.remove(path)
		return fmt.Errorf("write address file: %w", err)
	}
	defer m.remove(path)

	return fn(path)
}

// tempPath builds a name unique per (router, slug, instant) plus a random
// component so two requests inside one clock tick cannot collide.
func (m *Manager) tempPath(router, slug string) string {
	var rnd [4]byte
	_, _ = rand.Read(rnd[:])
	name := fmt.Sprintf("addrs-%s-%s-%d-%s.txt",
		router, slug, time.Now().UnixNano(), hex.EncodeToString(rnd[:]))
	return filepath.Join(m.dir, name)
}

func (m *Manager) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("temp address file cleanup failed", "path", path, "error", err)
	}
}
