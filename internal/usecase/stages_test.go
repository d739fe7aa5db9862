package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dbpull/internal/adapter/database"
	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

func TestManagedArtifact(t *testing.T) {
	Convey("Given a managed artifact", t, func() {
		dir := t.TempDir()
		a, err := newManagedArtifact(dir)
		So(err, ShouldBeNil)
		So(filepath.Base(a.Path()), ShouldStartWith, "db_pull_")

		Convey("Discard should remove it and be idempotent", func() {
			So(a.Discard(), ShouldBeNil)
			_, err := os.Stat(a.Path())
			So(os.IsNotExist(err), ShouldBeTrue)
			So(a.Discard(), ShouldBeNil)
		})
	})
}

func TestCreateBackupFile(t *testing.T) {
	Convey("Given a backup directory", t, func() {
		dir := t.TempDir()
		now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

		Convey("The first file should use the plain timestamped name", func() {
			f, err := createBackupFile(dir, "app", now)
			So(err, ShouldBeNil)
			defer f.Close()
			So(filepath.Base(f.Name()), ShouldEqual, "app_20240309_140507.sql")
		})

		Convey("A second file in the same second should get a suffix", func() {
			first, err := createBackupFile(dir, "app", now)
			So(err, ShouldBeNil)
			first.Close()

			second, err := createBackupFile(dir, "app", now)
			So(err, ShouldBeNil)
			defer second.Close()
			So(filepath.Base(second.Name()), ShouldEqual, "app_20240309_140507_1.sql")

			ts, err := extractTimestamp(filepath.Base(second.Name()))
			So(err, ShouldBeNil)
			So(ts.Equal(now), ShouldBeTrue)
		})
	})
}

func TestGrowthPercent(t *testing.T) {
	Convey("Growth percentages", t, func() {
		So(growthPercent(500, 1000), ShouldEqual, 50)
		So(growthPercent(5000, 1000), ShouldEqual, 99)
		So(growthPercent(1000, 1000), ShouldEqual, 99)
		So(growthPercent(500, 0), ShouldEqual, 0)
		So(growthPercent(0, 1000), ShouldEqual, 0)
	})
}

func TestParsePercent(t *testing.T) {
	Convey("pv status lines", t, func() {
		pct, ok := parsePercent(" 45%")
		So(ok, ShouldBeTrue)
		So(pct, ShouldEqual, 45)

		pct, ok = parsePercent("[=====>      ] 52 %")
		So(ok, ShouldBeTrue)
		So(pct, ShouldEqual, 52)

		_, ok = parsePercent("pv: No such file or directory")
		So(ok, ShouldBeFalse)
	})
}

func TestStageError(t *testing.T) {
	Convey("Given process failures", t, func() {
		Convey("A launch failure should be ProcessLaunchFailed", func() {
			err := stageError(domain.StageDump, domain.KindDumpFailed, &procrun.LaunchError{Name: "ssh", Err: os.ErrNotExist})
			So(errors.Is(err, domain.ErrProcessLaunchFailed), ShouldBeTrue)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			So(err.Stage, ShouldEqual, domain.StageDump)
		})

		Convey("A timeout should be TimeoutExceeded", func() {
			err := stageError(domain.StageImport, domain.KindImportFailed, fmt.Errorf("mysql: %w", procrun.ErrTimeout))
			So(errors.Is(err, domain.ErrTimeoutExceeded), ShouldBeTrue)
			So(errors.Is(err, domain.ErrImportFailed), ShouldBeFalse)
		})

		Convey("A non-zero exit should keep the stage kind and stderr", func() {
			err := stageError(domain.StageBackup, domain.KindBackupFailed, &procrun.ExitError{Name: "mysqldump", Code: 2, Stderr: "Got error: 2002"})
			So(errors.Is(err, domain.ErrBackupFailed), ShouldBeTrue)
			So(err.Output, ShouldEqual, "Got error: 2002")
			So(err.Error(), ShouldStartWith, "backup: local backup failed")
		})
	})
}

func TestDetectImportMode(t *testing.T) {
	Convey("Given the pv probe", t, func() {
		tb := newToolbox(t)
		runner := procrun.New()
		ctx := context.Background()

		Convey("A missing pv should select chunked", func() {
			m := database.NewMySQL(database.Tools{PV: tb.pv})
			So(DetectImportMode(ctx, runner, m, "auto"), ShouldEqual, ImportChunked)
		})

		Convey("A working pv should select metered", func() {
			m := database.NewMySQL(database.Tools{PV: tb.script("pv", okMeter)})
			So(DetectImportMode(ctx, runner, m, "auto"), ShouldEqual, ImportMetered)
		})

		Convey("A forced mode should skip the probe", func() {
			counting := &countingRunner{Runner: runner}
			m := database.NewMySQL(database.Tools{PV: tb.pv})
			So(DetectImportMode(ctx, counting, m, "metered"), ShouldEqual, ImportMetered)
			So(counting.calls.Load(), ShouldEqual, 0)
		})
	})
}
