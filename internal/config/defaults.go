// Package config holds defaults shared by every consumer of a store target.
package config

import (
	"strings"

	"github.com/leapstack-labs/leapkpi/pkg/core"
	"github.com/leapstack-labs/leapkpi/pkg/dialect"
)

// Default target values.
const (
	DefaultTargetType   = "sqlite"
	DefaultDatabase     = ".leapkpi/store.db"
	DefaultPostgresPort = 5432
	DefaultMySQLPort    = 3306
)

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}

	t.Type = strings.ToLower(strings.TrimSpace(t.Type))
	if t.Type == "" {
		t.Type = DefaultTargetType
	}

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}

	switch t.Type {
	case "postgres":
		if t.Port == 0 {
			t.Port = DefaultPostgresPort
		}
	case "mysql":
		if t.Port == 0 {
			t.Port = DefaultMySQLPort
		}
	case "sqlite", "duckdb":
		if t.Database == "" {
			t.Database = DefaultDatabase
		}
	}
}

// DefaultSchemaForType returns the default schema of a registered dialect,
// or "" when the dialect is unknown or has none.
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(dbType); ok {
		return d.DefaultSchema
	}
	return ""
}
