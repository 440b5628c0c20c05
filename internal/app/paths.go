package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Paths holds the resolved filesystem layout around the database file.
// Runtime files live in a run/ directory next to the database.
type Paths struct {
	Root string // directory holding the database
	DB   string // the bbolt file

	RunDir   string // <root>/run/
	PIDFile  string // <root>/run/whiskeybar.pid
	AddrFile string // <root>/run/http.addr
}

// NewPaths resolves the layout for dbPath. A relative path is made absolute
// against the working directory.
func NewPaths(dbPath string) (*Paths, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dbPath, err)
	}
	root := filepath.Dir(abs)
	return &Paths{
		Root:     root,
		DB:       abs,
		RunDir:   filepath.Join(root, "run"),
		PIDFile:  filepath.Join(root, "run", "whiskeybar.pid"),
		AddrFile: filepath.Join(root, "run", "http.addr"),
	}, nil
}

// EnsureDirs creates the database directory and run/. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.RunDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// WriteRuntime records the serving process and its bound address.
func (p *Paths) WriteRuntime(pid int, addr string) error {
	if err := os.WriteFile(p.PIDFile, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(p.AddrFile, []byte(addr+"\n"), 0o644)
}

// ReadAddr returns the address recorded by a running server, or "" when
// none is recorded.
func (p *Paths) ReadAddr() string {
	data, err := os.ReadFile(p.AddrFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// CleanEphemeral removes the PID and address files. Called on clean shutdown.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PIDFile)
	os.Remove(p.AddrFile)
}
