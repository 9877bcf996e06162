package db

import "errors"

var (
	// ErrInvalidConfig is returned when DATABASE_CONN_URL cannot be parsed.
	ErrInvalidConfig = errors.New("db: invalid postgres configuration")
	// ErrConnect is returned when the pool never answered a ping.
	ErrConnect           = errors.New("db: cannot reach postgres")
	ErrHealthcheckFailed = errors.New("db: healthcheck failed")
	// ErrMigrationSetup is returned when the goose provider cannot be built.
	ErrMigrationSetup = errors.New("db: prepare schema migrations")
	ErrMigrate        = errors.New("db: apply schema migrations")
)
