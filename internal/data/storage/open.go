package storage

import (
	"fmt"

	"github.com/songzhibin97/xrplfeed/internal/data"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the key-value store for driver.
func Open(driver, dsn string) (data.KeyValueStore, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLiteStorage(dsn)
	case DriverPostgres:
		return NewPostgresStorage(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
