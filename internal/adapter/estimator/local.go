// Package estimator reports approximate schema sizes used as progress
// denominators. Estimates never fail: any problem yields 0.
package estimator

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/semmidev/dbpull/internal/adapter/database"
	"github.com/semmidev/dbpull/internal/domain"
)

// DefaultTimeout bounds a single estimate regardless of the job timeout.
const DefaultTimeout = 60 * time.Second

// Local queries information_schema of the local server directly.
type Local struct {
	endpoint domain.DBEndpoint
	timeout  time.Duration
	logger   domain.Logger
}

func NewLocal(endpoint domain.DBEndpoint, timeout time.Duration, logger domain.Logger) *Local {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Local{endpoint: endpoint, timeout: timeout, logger: logger}
}

func (l *Local) EstimateSizeBytes(ctx context.Context, schema string) int64 {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cfg := mysql.NewConfig()
	cfg.User = l.endpoint.Username
	cfg.Passwd = l.endpoint.Password
	cfg.Net = "tcp"
	cfg.Addr = l.endpoint.Addr()
	cfg.Timeout = l.timeout

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		l.logger.Warnf("Local size estimate unavailable: %v", err)
		return 0
	}

	db := sql.OpenDB(connector)
	defer db.Close()

	var size sql.NullInt64
	if err := db.QueryRowContext(ctx, database.SizeQuery, schema).Scan(&size); err != nil {
		l.logger.Warnf("Local size estimate unavailable: %v", err)
		return 0
	}
	if !size.Valid || size.Int64 < 0 {
		return 0
	}

	return size.Int64
}
