package intervene

import (
	"database/sql"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/casaops/intervene/internal/host"
	"github.com/casaops/intervene/internal/persistence"
	"github.com/casaops/intervene/internal/projection"
	"github.com/casaops/intervene/pkg/api"
)

// Host runs workflow instances; see internal/host for the runtime.
type Host = host.Host

// HostConfig configures a Host built with NewHost.
type HostConfig = host.Config

// NewHost builds a Host from an explicit configuration. Most callers
// want NewInMemoryHost or NewSQLiteHost instead.
func NewHost(cfg HostConfig) (*Host, error) {
	return host.New(cfg)
}

// NewInMemoryHost builds a Host with in-memory instance and search
// attribute stores. Suited to tests and single-process demos; nothing
// survives the process.
func NewInMemoryHost(logger *slog.Logger) (*Host, error) {
	return NewInMemoryHostWithObserver(logger, nil)
}

// NewInMemoryHostWithObserver is NewInMemoryHost with an observer wired
// in.
func NewInMemoryHostWithObserver(logger *slog.Logger, obs api.Observer) (*Host, error) {
	proj, err := projection.NewMemDBStore()
	if err != nil {
		return nil, err
	}
	return host.New(host.Config{
		Store:      persistence.NewInMemoryStore(),
		Projection: proj,
		Observer:   obs,
		Logger:     logger,
	})
}

// NewSQLiteHost builds a Host whose instance records and search
// attributes live in the SQLite database at path. Instances suspended on
// an intervention survive a restart and can be resumed with
// Host.RecoverStuckInstances.
func NewSQLiteHost(path string, logger *slog.Logger) (*Host, error) {
	return NewSQLiteHostWithObserver(path, logger, nil)
}

// NewSQLiteHostWithObserver is NewSQLiteHost with an observer wired in.
func NewSQLiteHostWithObserver(path string, logger *slog.Logger, obs api.Observer) (*Host, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := persistence.NewSQLiteInstanceStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	proj, err := projection.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return host.New(host.Config{
		Store:      store,
		Projection: proj,
		Observer:   obs,
		Logger:     logger,
	})
}
