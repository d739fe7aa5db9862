package estimator

import (
	"context"
	"time"

	"github.com/semmidev/dbpull/internal/adapter/database"
	"github.com/semmidev/dbpull/internal/adapter/shell"
	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

// Remote runs the size query with the mysql client on the remote host over ssh.
type Remote struct {
	runner   procrun.Runner
	mysql    *database.MySQL
	shell    *shell.Client
	endpoint domain.DBEndpoint
	timeout  time.Duration
	logger   domain.Logger
}

func (r *Remote) EstimateSizeBytes(ctx context.Context, schema string) int64 {
	cmd := r.mysql.RemoteSize(r.shell, r.endpoint, schema)
	cmd.Timeout = r.timeout

	res, err := r.runner.Run(ctx, cmd)
	if err != nil {
		r.logger.Warnf("Remote size estimate unavailable: %v", err)
		return 0
	}

	size, err := database.ParseSize(res.Stdout)
	if err != nil || size < 0 {
		r.logger.Warnf("Remote size estimate unavailable: %v", err)
		return 0
	}

	return size
}
