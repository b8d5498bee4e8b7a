// internal/firmware/source.go
package firmware

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Source loads a firmware blob by name. The content is opaque.
type Source interface {
	Load(name string) ([]byte, error)
}

// DirSource resolves names relative to a firmware directory,
// e.g. "Nuvoton/NAU83G60.kcs.bin.l" under /lib/firmware.
type DirSource struct {
	Dir string
}

func (s DirSource) Load(name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("firmware: empty name")
	}
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("firmware: name %q escapes the firmware directory", name)
	}
	b, err := os.ReadFile(filepath.Join(s.Dir, filepath.FromSlash(name)))
	if err != nil {
		return nil, fmt.Errorf("firmware: %w", err)
	}
	return b, nil
}

// MapSource serves blobs from memory.
type MapSource map[string][]byte

func (m MapSource) Load(name string) ([]byte, error) {
	b, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("firmware: %s: %w", name, os.ErrNotExist)
	}
	return b, nil
}
