package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dbpull/internal/config"
	"github.com/semmidev/dbpull/internal/domain"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		App:   config.AppConfig{Name: "dbpull", Env: "local", LogLevel: "error"},
		Local: config.LocalDatabaseConfig{Driver: "mysql", Database: "app_local"},
		Pull: config.PullConfig{
			BackupDir:    filepath.Join(dir, "backups"),
			ImportMode:   config.ImportModeAuto,
			PollInterval: 10 * time.Millisecond,
		},
		Queue: config.QueueConfig{Path: filepath.Join(dir, "dbpull.db"), PollInterval: 10 * time.Millisecond},
		Backup: config.BackupConfig{
			RetentionDays: 7,
			UploadTargets: []config.UploadTarget{
				{Type: "local", Enabled: true, Path: filepath.Join(dir, "mirror")},
				{Type: "local", Enabled: false, Path: filepath.Join(dir, "unused")},
			},
		},
	}
}

func TestApp(t *testing.T) {
	Convey("Given a config with a local mirror and a queue", t, func() {
		cfg := testConfig(t)
		ctx := context.Background()

		a, err := New(ctx, cfg, Options{})
		So(err, ShouldBeNil)
		defer a.Shutdown()

		Convey("Only enabled upload targets should be built", func() {
			So(a.uploadTargets, ShouldHaveLength, 1)
			So(a.uploadTargets[0].Name, ShouldEqual, "local")
		})

		Convey("The job list should start empty", func() {
			jobs, err := a.Jobs(ctx, 10)
			So(err, ShouldBeNil)
			So(jobs, ShouldBeEmpty)
		})

		Convey("Enqueue should reject incomplete connection settings", func() {
			_, err := a.Enqueue(ctx, domain.JobRequest{})

			var cfgErr *domain.ConfigError
			So(errors.As(err, &cfgErr), ShouldBeTrue)
			So(cfgErr.Missing, ShouldContain, "ssh.host")

			jobs, _ := a.Jobs(ctx, 10)
			So(jobs, ShouldBeEmpty)
		})

		Convey("Serve should return once cancelled", func() {
			serveCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()

			So(a.Serve(serveCtx), ShouldBeNil)
		})

		Convey("Serve should reject an invalid schedule", func() {
			cfg.Pull.Schedule = "every day"
			So(a.Serve(ctx), ShouldNotBeNil)
		})
	})

	Convey("Given a config without a queue", t, func() {
		cfg := testConfig(t)
		cfg.Queue.Path = ""

		a, err := New(context.Background(), cfg, Options{Quiet: true})
		So(err, ShouldBeNil)
		defer a.Shutdown()

		Convey("Queue operations should fail clearly", func() {
			_, err := a.Jobs(context.Background(), 10)
			So(err, ShouldNotBeNil)

			_, err = a.Enqueue(context.Background(), domain.JobRequest{})
			So(err.Error(), ShouldContainSubstring, "queue is not configured")

			So(a.Serve(context.Background()), ShouldNotBeNil)
		})
	})
}
