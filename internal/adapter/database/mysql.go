// Package database builds the mysql client invocations used by a pull.
package database

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/semmidev/dbpull/internal/adapter/shell"
	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

// SizeQuery sums data and index bytes of every table in a schema.
const SizeQuery = "SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables WHERE table_schema = ?"

const passwordEnv = "MYSQL_PWD"

// Tools names the client binaries on the local host.
type Tools struct {
	MySQL     string
	MySQLDump string
	PV        string
}

type MySQL struct {
	tools Tools
}

func NewMySQL(tools Tools) *MySQL {
	if tools.MySQL == "" {
		tools.MySQL = "mysql"
	}
	if tools.MySQLDump == "" {
		tools.MySQLDump = "mysqldump"
	}
	if tools.PV == "" {
		tools.PV = "pv"
	}
	return &MySQL{tools: tools}
}

func connArgs(ep domain.DBEndpoint) []string {
	return []string{
		fmt.Sprintf("--host=%s", ep.Host),
		fmt.Sprintf("--port=%d", ep.Port),
		fmt.Sprintf("--user=%s", ep.Username),
	}
}

// Backup dumps the local database into out.
func (m *MySQL) Backup(ep domain.DBEndpoint, out io.Writer) procrun.Command {
	args := append(connArgs(ep),
		"--single-transaction",
		"--quick",
		"--routines",
		"--triggers",
		ep.Database,
	)

	return procrun.Command{
		Name:   m.tools.MySQLDump,
		Args:   args,
		Env:    []string{passwordEnv + "=" + ep.Password},
		Stdout: out,
	}
}

// Import loads a dump into the local database from stdin. Exactly one of
// stdin or a piped stdin (stdin == nil) is used.
func (m *MySQL) Import(ep domain.DBEndpoint, stdin io.Reader) procrun.Command {
	return procrun.Command{
		Name:      m.tools.MySQL,
		Args:      append(connArgs(ep), ep.Database),
		Env:       []string{passwordEnv + "=" + ep.Password},
		Stdin:     stdin,
		PipeStdin: stdin == nil,
	}
}

// RemoteDump streams a consistent, non-locking dump of the remote database
// into out. The password travels on ssh's stdin.
func (m *MySQL) RemoteDump(sh *shell.Client, ep domain.DBEndpoint, out io.Writer) procrun.Command {
	words := append([]string{"mysqldump"}, connArgs(ep)...)
	words = append(words,
		"--single-transaction",
		"--quick",
		"--lock-tables=false",
		ep.Database,
	)

	cmd := sh.Command(shell.WithSecret(passwordEnv, shell.Join(words...)), shell.SecretInput(ep.Password))
	cmd.Stdout = out

	return cmd
}

// RemoteSize runs SizeQuery for schema with the mysql client on the remote host.
func (m *MySQL) RemoteSize(sh *shell.Client, ep domain.DBEndpoint, schema string) procrun.Command {
	query := strings.Replace(SizeQuery, "?", Literal(schema), 1)
	words := append([]string{"mysql"}, connArgs(ep)...)
	words = append(words, "-N", "-B", "-e", query)

	return sh.Command(shell.WithSecret(passwordEnv, shell.Join(words...)), shell.SecretInput(ep.Password))
}

// Meter streams path to out through pv, which reports percentages on stderr.
// -f forces output when stderr is not a terminal.
func (m *MySQL) Meter(path string, out io.Writer) procrun.Command {
	return procrun.Command{
		Name:   m.tools.PV,
		Args:   []string{"-f", "-p", path},
		Stdout: out,
	}
}

func (m *MySQL) MeterProbe() procrun.Command {
	return procrun.Command{Name: m.tools.PV, Args: []string{"-V"}}
}

// Literal renders s as a MySQL string literal.
func Literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

// ParseSize reads the single integer printed by the size query.
func ParseSize(out string) (int64, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty size query result")
	}
	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse size %q: %w", fields[0], err)
	}

	return size, nil
}
