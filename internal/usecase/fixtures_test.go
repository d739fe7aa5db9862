package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/semmidev/dbpull/internal/adapter/database"
	"github.com/semmidev/dbpull/internal/adapter/shell"
	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/logger"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

const (
	okBackup = `[ "$MYSQL_PWD" = "localpw" ] || { echo "access denied" >&2; exit 7; }
echo "-- local backup"
echo "INSERT INTO t VALUES (1);"`

	okRemoteDump = `IFS= read -r pw
[ "$pw" = "remotepw" ] || { echo "access denied for remote" >&2; exit 8; }
echo "-- remote dump"
echo "INSERT INTO t VALUES (2);"`

	okMeter = `[ "$1" = "-V" ] && exit 0
printf ' 10%%\r' >&2
printf ' 60%%\r' >&2
cat "$3"
printf '100%%\n' >&2`
)

// toolbox holds stand-ins for mysqldump, ssh, mysql and pv.
type toolbox struct {
	t         *testing.T
	dir       string
	backupDir string
	tempDir   string
	sink      string
	marker    string

	mysqldump string
	ssh       string
	mysql     string
	pv        string
}

func newToolbox(t *testing.T) *toolbox {
	t.Helper()
	root := t.TempDir()
	tb := &toolbox{
		t:         t,
		dir:       filepath.Join(root, "bin"),
		backupDir: filepath.Join(root, "backups"),
		tempDir:   filepath.Join(root, "tmp"),
		sink:      filepath.Join(root, "imported.sql"),
		marker:    filepath.Join(root, "ssh-called"),
	}
	for _, d := range []string{tb.dir, tb.tempDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	tb.mysqldump = tb.script("mysqldump", okBackup)
	tb.ssh = tb.script("ssh", "touch '"+tb.marker+"'\n"+okRemoteDump)
	tb.mysql = tb.script("mysql", `[ "$MYSQL_PWD" = "localpw" ] || exit 9
cat > '`+tb.sink+`'`)
	tb.pv = filepath.Join(tb.dir, "pv-not-installed")

	return tb
}

func (tb *toolbox) script(name, body string) string {
	tb.t.Helper()
	path := filepath.Join(tb.dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		tb.t.Fatal(err)
	}
	return path
}

func (tb *toolbox) puller(runner procrun.Runner, estimates stubEstimators, importMode string) *Puller {
	mysql := database.NewMySQL(database.Tools{MySQL: tb.mysql, MySQLDump: tb.mysqldump, PV: tb.pv})
	return NewPuller(PullerConfig{
		BackupDir:    tb.backupDir,
		TempDir:      tb.tempDir,
		PollInterval: 10 * time.Millisecond,
		ImportMode:   importMode,
		SSHBinary:    tb.ssh,
		Weights:      DefaultWeights,
	}, runner, mysql, estimates, logger.Nop())
}

func (tb *toolbox) backups() []string {
	entries, _ := os.ReadDir(tb.backupDir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (tb *toolbox) dumpArtifacts() []string {
	matches, _ := filepath.Glob(filepath.Join(tb.tempDir, "db_pull_*"))
	return matches
}

func (tb *toolbox) sshCalled() bool {
	_, err := os.Stat(tb.marker)
	return err == nil
}

func endpoints() *domain.Endpoints {
	return &domain.Endpoints{
		Local:  domain.DBEndpoint{Host: "127.0.0.1", Port: 3306, Username: "root", Password: "localpw", Database: "app_local"},
		Remote: domain.DBEndpoint{Host: "127.0.0.1", Port: 3306, Username: "forge", Password: "remotepw", Database: "app"},
		Shell:  domain.ShellEndpoint{Host: "prod.example.com", Port: 22, User: "forge", KeyPath: "/keys/id_ed25519"},
	}
}

type fixedEstimate int64

func (f fixedEstimate) EstimateSizeBytes(context.Context, string) int64 {
	return int64(f)
}

type stubEstimators struct {
	local  int64
	remote int64
}

func (s stubEstimators) Local(domain.DBEndpoint) domain.SizeEstimator {
	return fixedEstimate(s.local)
}

func (s stubEstimators) Remote(*shell.Client, domain.DBEndpoint) domain.SizeEstimator {
	return fixedEstimate(s.remote)
}

type recorder struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (r *recorder) OnProgress(message string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, domain.ProgressEvent{Message: message, Percent: percent})
}

func (r *recorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.events))
	for i, e := range r.events {
		out[i] = e.Percent
	}
	return out
}

func (r *recorder) matching(substr string) []domain.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ProgressEvent
	for _, e := range r.events {
		if strings.Contains(e.Message, substr) {
			out = append(out, e)
		}
	}
	return out
}

func nonDecreasing(values []int) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}

// countingRunner counts every process the pipeline asks for.
type countingRunner struct {
	procrun.Runner
	calls atomic.Int32
}

func (c *countingRunner) Run(ctx context.Context, cmd procrun.Command) (*procrun.Result, error) {
	c.calls.Add(1)
	return c.Runner.Run(ctx, cmd)
}

func (c *countingRunner) Start(ctx context.Context, cmd procrun.Command) (procrun.Handle, error) {
	c.calls.Add(1)
	return c.Runner.Start(ctx, cmd)
}
