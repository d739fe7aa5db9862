package domain

import (
	"net"
	"strconv"
)

// DBEndpoint identifies a MySQL server and the schema to work on.
type DBEndpoint struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

func (e DBEndpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// ShellEndpoint is the SSH account used to reach the remote database host.
type ShellEndpoint struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	KnownHostsFile string
}

func (e ShellEndpoint) Target() string {
	return e.User + "@" + e.Host
}

// Endpoints is the validated set of connection details for one pull.
type Endpoints struct {
	Local  DBEndpoint
	Remote DBEndpoint
	Shell  ShellEndpoint
}
