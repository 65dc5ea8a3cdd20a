package api

import (
	"errors"
	"net/http"

	"github.com/duckmesh/duckview/internal/auth"
	"github.com/duckmesh/duckview/internal/database"
)

func handleListDatabases(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Databases == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATABASES_NOT_CONFIGURED", "no databases are configured", false, nil)
		return
	}
	identity, authenticated := auth.IdentityFromContext(r.Context())
	items := make([]database.Info, 0)
	for _, info := range deps.Databases.List() {
		if authenticated && !identity.CanAccess(info.Name) {
			continue
		}
		items = append(items, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": items})
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	db, ok := resolveDatabase(deps, w, r)
	if !ok {
		return
	}
	tables, err := db.Tables(r.Context())
	if err != nil {
		if errors.Is(err, database.ErrClosed) {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "database is closed", true, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list tables", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database": db.Name(),
		"tables":   tables,
	})
}

// resolveDatabase finds the database named in the path and checks that the
// caller may use it. It writes the error response itself.
func resolveDatabase(deps Dependencies, w http.ResponseWriter, r *http.Request) (*database.Database, bool) {
	if deps.Databases == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATABASES_NOT_CONFIGURED", "no databases are configured", false, nil)
		return nil, false
	}
	name := r.PathValue("database")
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && !identity.CanAccess(name) {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", "principal "+identity.Principal+" may not access database "+name, false, nil)
		return nil, false
	}
	db, ok := deps.Databases.Get(name)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "DATABASE_NOT_FOUND", "database was not found", false, map[string]any{"database": name})
		return nil, false
	}
	return db, true
}
