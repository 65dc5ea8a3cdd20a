package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// AllDatabases grants access to every database.
const AllDatabases = "*"

type Identity struct {
	Principal string
	Databases []string
}

// CanAccess reports whether the identity was granted database.
func (i Identity) CanAccess(database string) bool {
	for _, candidate := range i.Databases {
		if candidate == AllDatabases || candidate == database {
			return true
		}
	}
	return false
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses comma separated key:principal:db|db entries.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	entries := strings.Split(spec, ",")
	for _, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:principal:database|database", entry)
		}
		key := strings.TrimSpace(parts[0])
		principal := strings.TrimSpace(parts[1])
		if key == "" || principal == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/principal", entry)
		}
		if _, exists := validator.keys[key]; exists {
			return nil, fmt.Errorf("invalid static key entry %q: duplicate key", entry)
		}
		databaseParts := strings.Split(strings.TrimSpace(parts[2]), "|")
		databases := make([]string, 0, len(databaseParts))
		for _, database := range databaseParts {
			database = strings.TrimSpace(database)
			if database == "" {
				continue
			}
			databases = append(databases, database)
		}
		if len(databases) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one database is required", entry)
		}
		sort.Strings(databases)
		validator.keys[key] = Identity{Principal: principal, Databases: databases}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
