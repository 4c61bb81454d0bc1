package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rl1809/bookshelf/internal/core/domain"
)

//go:embed roles.yaml
var defaultRoles []byte

type roleTable struct {
	Roles []domain.Role `yaml:"roles"`
}

// DefaultRoles returns the built-in role table.
func DefaultRoles() []domain.Role {
	roles, err := ParseRoles(defaultRoles)
	if err != nil {
		panic(fmt.Sprintf("embedded roles.yaml: %v", err))
	}
	return roles
}

// LoadRoles reads a role table from path, or returns the built-in table
// when path is empty.
func LoadRoles(path string) ([]domain.Role, error) {
	if path == "" {
		return DefaultRoles(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roles file: %w", err)
	}
	return ParseRoles(data)
}

// ParseRoles decodes a role table. JSON input is accepted since it is valid
// YAML.
func ParseRoles(data []byte) ([]domain.Role, error) {
	var table roleTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing roles: %w", err)
	}
	if len(table.Roles) == 0 {
		return nil, fmt.Errorf("parsing roles: no roles defined")
	}
	return table.Roles, nil
}
