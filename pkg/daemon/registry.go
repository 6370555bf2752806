// Package daemon runs the convergence loop that drives local WireGuard
// devices toward the state served by the planner.
package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

// DefaultConfigPath is where the daemon and the connect subcommand look
// for registrations unless told otherwise.
const DefaultConfigPath = "/etc/wirewarden/daemon.toml"

var ErrDuplicate = errors.New("registration already exists")

// Registration binds one local interface to one gateway identity on the
// planner.
type Registration struct {
	APIHost   string `toml:"api_host"`
	APIToken  string `toml:"api_token"`
	Interface string `toml:"interface"`
}

// Registry persists registrations as a [[servers]] array in a TOML file.
// Rewrites re-emit the whole document and touch only the servers array,
// so keys the daemon does not know about survive.
type Registry struct {
	path string
}

func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) Path() string {
	return r.path
}

// Load returns the registrations in file order. A missing file is an
// empty registry; callers that require registrations check for that
// themselves.
func (r *Registry) Load() ([]Registration, error) {
	_, servers, err := r.read()
	return servers, err
}

// Append adds reg to the file, refusing duplicates by (api_host,
// api_token) and by interface name.
func (r *Registry) Append(reg Registration) error {
	raw, servers, err := r.read()
	if err != nil {
		return err
	}

	for _, existing := range servers {
		if existing.APIHost == reg.APIHost && existing.APIToken == reg.APIToken {
			return fmt.Errorf("%w: gateway already registered for %s", ErrDuplicate, reg.APIHost)
		}
		if existing.Interface == reg.Interface {
			return fmt.Errorf("%w: interface %s is already taken", ErrDuplicate, reg.Interface)
		}
	}

	return r.write(raw, append(servers, reg))
}

// RemoveByToken drops every registration carrying token. A token that is
// not present is a no-op and leaves the file untouched.
func (r *Registry) RemoveByToken(token string) error {
	raw, servers, err := r.read()
	if err != nil {
		return err
	}

	kept := make([]Registration, 0, len(servers))
	for _, reg := range servers {
		if reg.APIToken != token {
			kept = append(kept, reg)
		}
	}
	if len(kept) == len(servers) {
		return nil
	}

	return r.write(raw, kept)
}

// AutoAssignInterface returns the lowest wgN not taken by an existing
// registration.
func (r *Registry) AutoAssignInterface() (string, error) {
	_, servers, err := r.read()
	if err != nil {
		return "", err
	}

	taken := make(map[string]bool, len(servers))
	for _, reg := range servers {
		taken[reg.Interface] = true
	}

	for n := 0; ; n++ {
		name := fmt.Sprintf("wg%d", n)
		if !taken[name] {
			return name, nil
		}
	}
}

// read parses the file twice: once into a generic map that keeps
// everything for the next write, once strictly into registrations.
func (r *Registry) read() (map[string]interface{}, []Registration, error) {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]interface{}{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", r.path, err)
	}

	var raw map[string]interface{}
	if err := toml.Unmarshal(b, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", r.path, err)
	}

	var typed struct {
		Servers []Registration `toml:"servers"`
	}
	if err := toml.Unmarshal(b, &typed); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", r.path, err)
	}

	return raw, typed.Servers, nil
}

func (r *Registry) write(raw map[string]interface{}, servers []Registration) error {
	raw["servers"] = servers

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("encode %s: %w", r.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := atomic.WriteFile(r.path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}

	return nil
}
