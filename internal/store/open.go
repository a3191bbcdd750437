// ABOUTME: Store factory selecting a backend from a driver name
// ABOUTME: Maps config driver values onto SQLStore drivers or the in-memory store

package store

import "fmt"

// DriverMemory selects the in-memory store.
const DriverMemory = "memory"

// Options selects and configures a backend.
type Options struct {
	Driver string // sqlite (default), sqlite3, pgx, postgres, memory
	Path   string // SQLite file path
	DSN    string // Postgres connection string
}

// Open creates the Store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverSQLite, DriverSQLite3:
		driver := opts.Driver
		if driver == "" {
			driver = DriverSQLite
		}
		if opts.Path == "" {
			return nil, fmt.Errorf("database path is required for driver %s", driver)
		}
		return NewSQLStore(driver, opts.Path)
	case DriverPostgres, "postgres":
		if opts.DSN == "" {
			return nil, fmt.Errorf("database dsn is required for driver %s", opts.Driver)
		}
		return NewSQLStore(DriverPostgres, opts.DSN)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
}
