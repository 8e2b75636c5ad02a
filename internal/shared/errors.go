package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Storage errors
	ErrDatabaseConnection = fmt.Errorf("database connection failed")
	ErrMigration          = fmt.Errorf("migration failed")
	ErrNotFound           = fmt.Errorf("not found")
	ErrConflict           = fmt.Errorf("already exists")

	// Authentication and authorization errors
	ErrUnauthorized   = fmt.Errorf("unauthorized")
	ErrForbidden      = fmt.Errorf("forbidden")
	ErrInvalidToken   = fmt.Errorf("invalid token")
	ErrSessionRevoked = fmt.Errorf("session revoked")

	// Category index errors
	ErrIndexSync    = fmt.Errorf("category index sync failed")
	ErrInvalidField = fmt.Errorf("unknown category field")

	// Import/export errors
	ErrImport = fmt.Errorf("import failed")
	ErrExport = fmt.Errorf("export failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidSong     = fmt.Errorf("invalid song")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
