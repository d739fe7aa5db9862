package usecase

import (
	"fmt"
	"strings"

	"github.com/semmidev/dbpull/internal/config"
	"github.com/semmidev/dbpull/internal/domain"
)

const (
	defaultDBHost  = "127.0.0.1"
	defaultDBPort  = 3306
	defaultSSHPort = 22
	defaultSSHUser = "forge"
)

var supportedDrivers = []string{"mysql", "mariadb"}

// ResolveEndpoints turns raw configuration into validated endpoints. Every
// missing field is reported in a single *domain.ConfigError.
func ResolveEndpoints(local config.LocalDatabaseConfig, remote config.RemoteDatabaseConfig, ssh config.SSHConfig) (*domain.Endpoints, error) {
	ep := &domain.Endpoints{
		Local: domain.DBEndpoint{
			Host:     orDefault(local.Host, defaultDBHost),
			Port:     orDefaultInt(local.Port, defaultDBPort),
			Username: local.Username,
			Password: local.Password,
			Database: local.Database,
		},
		Remote: domain.DBEndpoint{
			Host:     orDefault(remote.Host, defaultDBHost),
			Port:     orDefaultInt(remote.Port, defaultDBPort),
			Username: remote.Username,
			Password: remote.Password,
			Database: remote.Database,
		},
		Shell: domain.ShellEndpoint{
			Host:           ssh.Host,
			Port:           orDefaultInt(ssh.Port, defaultSSHPort),
			User:           orDefault(ssh.User, defaultSSHUser),
			KeyPath:        ssh.KeyPath,
			KnownHostsFile: ssh.KnownHostsFile,
		},
	}

	err := ValidateEndpoints(ep)
	if !driverSupported(local.Driver) {
		reason := fmt.Sprintf("local database driver %q is not supported, expected mysql", local.Driver)
		ce, ok := err.(*domain.ConfigError)
		if !ok {
			ce = &domain.ConfigError{}
		}
		ce.Reasons = append(ce.Reasons, reason)
		err = ce
	}
	if err != nil {
		return nil, err
	}

	return ep, nil
}

// ValidateEndpoints checks that every field a pull needs is present.
func ValidateEndpoints(ep *domain.Endpoints) error {
	if ep == nil {
		return &domain.ConfigError{Reasons: []string{"no endpoints configured"}}
	}

	var missing []string
	check := func(value, name string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	check(ep.Shell.Host, "ssh.host")
	check(ep.Shell.KeyPath, "ssh.key_path")
	check(ep.Remote.Database, "remote.database")
	check(ep.Remote.Username, "remote.username")
	check(ep.Remote.Password, "remote.password")
	check(ep.Local.Database, "local.database")

	if len(missing) > 0 {
		return &domain.ConfigError{Missing: missing}
	}

	return nil
}

func driverSupported(driver string) bool {
	for _, d := range supportedDrivers {
		if strings.EqualFold(driver, d) {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
