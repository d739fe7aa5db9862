package estimator

import (
	"time"

	"github.com/semmidev/dbpull/internal/adapter/database"
	"github.com/semmidev/dbpull/internal/adapter/shell"
	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

type Factory struct {
	runner  procrun.Runner
	mysql   *database.MySQL
	timeout time.Duration
	logger  domain.Logger
}

func NewFactory(runner procrun.Runner, mysql *database.MySQL, timeout time.Duration, logger domain.Logger) *Factory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Factory{runner: runner, mysql: mysql, timeout: timeout, logger: logger}
}

func (f *Factory) Local(endpoint domain.DBEndpoint) domain.SizeEstimator {
	return NewLocal(endpoint, f.timeout, f.logger)
}

func (f *Factory) Remote(sh *shell.Client, endpoint domain.DBEndpoint) domain.SizeEstimator {
	return &Remote{
		runner:   f.runner,
		mysql:    f.mysql,
		shell:    sh,
		endpoint: endpoint,
		timeout:  f.timeout,
		logger:   f.logger,
	}
}
