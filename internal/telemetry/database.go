package telemetry

import (
	"database/sql"
	"strings"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func OpenDB(driverName, dsn string) (*sql.DB, error) {
	return otelsql.Open(driverName, dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
}

// WithSearchPath pins a schema in the DSN. lib/pq forwards unknown URL
// parameters as server runtime parameters, so every pooled connection gets
// the search_path, unlike a SET run on whichever connection happens to be
// checked out.
func WithSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&search_path=" + schema
	}
	return dsn + "?search_path=" + schema
}
