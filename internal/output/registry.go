package output

import (
	"fmt"
	"sort"
)

// StorageConfig carries the settings any registered storage may need.
type StorageConfig struct {
	Path     string // file storages
	Endpoint string // remote storages
	Token    string
	Capacity int // in-memory storages
	MaxSize  int64
}

// Constructor creates a Storage from config.
type Constructor func(cfg StorageConfig) (Storage, error)

var registry = map[string]Constructor{}

// Register adds a storage constructor under the given name.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get returns the storage constructor for the given name.
func Get(name string) (Constructor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage: %s", name)
	}
	return ctor, nil
}

// Providers returns the names of all registered storages, sorted.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
