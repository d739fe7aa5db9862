package database

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semmidev/dbpull/internal/adapter/shell"
	"github.com/semmidev/dbpull/internal/domain"
)

func local() domain.DBEndpoint {
	return domain.DBEndpoint{Host: "127.0.0.1", Port: 3306, Username: "root", Password: "localpw", Database: "app"}
}

func remote() domain.DBEndpoint {
	return domain.DBEndpoint{Host: "127.0.0.1", Port: 3306, Username: "forge", Password: "s3cr'et", Database: "app_prod"}
}

func client() *shell.Client {
	return shell.New("ssh", domain.ShellEndpoint{Host: "prod", Port: 22, User: "forge", KeyPath: "/k"})
}

func TestBackupCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewMySQL(Tools{}).Backup(local(), &out)

	require.Equal(t, "mysqldump", cmd.Name)
	require.Equal(t, []string{
		"--host=127.0.0.1", "--port=3306", "--user=root",
		"--single-transaction", "--quick", "--routines", "--triggers", "app",
	}, cmd.Args)
	require.Equal(t, []string{"MYSQL_PWD=localpw"}, cmd.Env)
	require.Same(t, &out, cmd.Stdout)
	require.NotContains(t, cmd.String(), "localpw")
}

func TestImportCommand(t *testing.T) {
	m := NewMySQL(Tools{MySQL: "/opt/mysql/bin/mysql"})

	piped := m.Import(local(), nil)
	require.Equal(t, "/opt/mysql/bin/mysql", piped.Name)
	require.True(t, piped.PipeStdin)
	require.Equal(t, "app", piped.Args[len(piped.Args)-1])

	direct := m.Import(local(), strings.NewReader(""))
	require.False(t, direct.PipeStdin)
	require.NotNil(t, direct.Stdin)
}

func TestRemoteDumpCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewMySQL(Tools{}).RemoteDump(client(), remote(), &out)

	require.Equal(t, "ssh", cmd.Name)
	script := cmd.Args[len(cmd.Args)-1]
	require.True(t, strings.HasPrefix(script, "IFS= read -r MYSQL_PWD && export MYSQL_PWD && exec 'mysqldump'"))
	require.Contains(t, script, "'--single-transaction'")
	require.Contains(t, script, "'--lock-tables=false'")
	require.Contains(t, script, "'app_prod'")
	for _, a := range cmd.Args {
		require.NotContains(t, a, "s3cr")
	}

	in, err := io.ReadAll(cmd.Stdin)
	require.NoError(t, err)
	require.Equal(t, "s3cr'et\n", string(in))
	require.Same(t, &out, cmd.Stdout)
}

func TestRemoteSizeCommand(t *testing.T) {
	cmd := NewMySQL(Tools{}).RemoteSize(client(), remote(), "app_prod")
	script := cmd.Args[len(cmd.Args)-1]
	require.Contains(t, script, "table_schema = '\\''app_prod'\\''")
	require.Contains(t, script, "'-N' '-B' '-e'")
}

func TestMeterCommands(t *testing.T) {
	m := NewMySQL(Tools{})
	require.Equal(t, []string{"-f", "-p", "/tmp/dump.sql"}, m.Meter("/tmp/dump.sql", io.Discard).Args)
	require.Equal(t, "pv -V", m.MeterProbe().String())
}

func TestLiteral(t *testing.T) {
	require.Equal(t, `'app'`, Literal("app"))
	require.Equal(t, `'a\'b\\c'`, Literal(`a'b\c`))
}

func TestParseSize(t *testing.T) {
	size, err := ParseSize("1048576\n")
	require.NoError(t, err)
	require.Equal(t, int64(1048576), size)

	_, err = ParseSize("")
	require.Error(t, err)
	_, err = ParseSize("NULL")
	require.Error(t, err)
}
