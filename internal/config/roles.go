package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultRoles is used when no roles file is configured.
func DefaultRoles() map[string]int {
	return map[string]int{"admin": 100, "editor": 60, "user": 50}
}

type rolesFile struct {
	Roles map[string]int `yaml:"roles"`
}

// LoadRoles reads a role table of the form
//
//	roles:
//	  admin: 100
//	  user: 50
//
// An empty path yields DefaultRoles.
func LoadRoles(path string) (map[string]int, error) {
	if path == "" {
		return DefaultRoles(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}
	return ParseRoles(raw)
}

// ParseRoles decodes a YAML role table.
func ParseRoles(raw []byte) (map[string]int, error) {
	var doc rolesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("roles file defines no roles")
	}
	for name, level := range doc.Roles {
		if name == "" {
			return nil, fmt.Errorf("roles file contains an empty role name")
		}
		if level < 0 {
			return nil, fmt.Errorf("role %q has negative level %d", name, level)
		}
	}
	return doc.Roles, nil
}
