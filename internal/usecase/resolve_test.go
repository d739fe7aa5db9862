package usecase

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dbpull/internal/config"
	"github.com/semmidev/dbpull/internal/domain"
)

func validConfig() (config.LocalDatabaseConfig, config.RemoteDatabaseConfig, config.SSHConfig) {
	return config.LocalDatabaseConfig{Driver: "mysql", Database: "app_local", Username: "root"},
		config.RemoteDatabaseConfig{Database: "app", Username: "forge", Password: "pw"},
		config.SSHConfig{Host: "prod.example.com", KeyPath: "/keys/id_ed25519"}
}

func TestResolveEndpoints(t *testing.T) {
	Convey("Given raw connection settings", t, func() {
		local, remote, ssh := validConfig()

		Convey("When everything required is present", func() {
			ep, err := ResolveEndpoints(local, remote, ssh)

			Convey("Defaults should be filled in", func() {
				So(err, ShouldBeNil)
				So(ep.Local.Host, ShouldEqual, "127.0.0.1")
				So(ep.Local.Port, ShouldEqual, 3306)
				So(ep.Remote.Host, ShouldEqual, "127.0.0.1")
				So(ep.Remote.Port, ShouldEqual, 3306)
				So(ep.Shell.Port, ShouldEqual, 22)
				So(ep.Shell.User, ShouldEqual, "forge")
				So(ep.Shell.Target(), ShouldEqual, "forge@prod.example.com")
			})
		})

		Convey("When the remote host, key path and local database are all missing", func() {
			ssh.Host = ""
			ssh.KeyPath = ""
			local.Database = ""
			_, err := ResolveEndpoints(local, remote, ssh)

			Convey("A single error should name all three", func() {
				So(errors.Is(err, domain.ErrConfigInvalid), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "ssh.host")
				So(err.Error(), ShouldContainSubstring, "ssh.key_path")
				So(err.Error(), ShouldContainSubstring, "local.database")

				var ce *domain.ConfigError
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.Missing, ShouldResemble, []string{"ssh.host", "ssh.key_path", "local.database"})
			})
		})

		Convey("When the local driver is not mysql", func() {
			local.Driver = "pgsql"
			remote.Password = ""
			_, err := ResolveEndpoints(local, remote, ssh)

			Convey("The rejection should be reported with the missing fields", func() {
				So(errors.Is(err, domain.ErrConfigInvalid), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, `"pgsql" is not supported`)
				So(err.Error(), ShouldContainSubstring, "remote.password")
			})
		})

		Convey("When the driver is mariadb", func() {
			local.Driver = "MariaDB"
			_, err := ResolveEndpoints(local, remote, ssh)

			Convey("It should be accepted", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}
