package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/logger"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "dbpull.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	Convey("Given an empty store", t, func() {
		store := openStore(t)
		ctx := context.Background()

		Convey("Claim should return nothing", func() {
			job, err := store.Claim(ctx)
			So(err, ShouldBeNil)
			So(job, ShouldBeNil)
		})

		Convey("Get should report a missing job", func() {
			_, err := store.Get(ctx, 42)
			So(errors.Is(err, ErrJobNotFound), ShouldBeTrue)
		})

		Convey("When two jobs are enqueued", func() {
			first, err := store.Enqueue(ctx, domain.JobRequest{SkipBackup: true})
			So(err, ShouldBeNil)
			second, err := store.Enqueue(ctx, domain.JobRequest{Force: true, Trigger: "schedule"})
			So(err, ShouldBeNil)

			Convey("They should be pending with a default trigger", func() {
				job, err := store.Get(ctx, first)
				So(err, ShouldBeNil)
				So(job.Status, ShouldEqual, JobStatusPending)
				So(job.Trigger, ShouldEqual, "manual")
				So(job.Request(), ShouldResemble, domain.JobRequest{SkipBackup: true, Trigger: "manual"})
			})

			Convey("List should return the newest first", func() {
				jobs, err := store.List(ctx, 10)
				So(err, ShouldBeNil)
				So(jobs, ShouldHaveLength, 2)
				So(jobs[0].ID, ShouldEqual, second)
				So(jobs[1].ID, ShouldEqual, first)

				limited, err := store.List(ctx, 1)
				So(err, ShouldBeNil)
				So(limited, ShouldHaveLength, 1)
			})

			Convey("Claim should take the oldest and mark it running", func() {
				job, err := store.Claim(ctx)
				So(err, ShouldBeNil)
				So(job.ID, ShouldEqual, first)
				So(job.Status, ShouldEqual, JobStatusRunning)
				So(job.StartedAt, ShouldNotBeNil)

				next, err := store.Claim(ctx)
				So(err, ShouldBeNil)
				So(next.ID, ShouldEqual, second)

				none, err := store.Claim(ctx)
				So(err, ShouldBeNil)
				So(none, ShouldBeNil)
			})

			Convey("Finishing successfully should record the outcome", func() {
				job, _ := store.Claim(ctx)
				outcome := &domain.Outcome{State: domain.StateDone, BackupPath: "/backups/app.sql", ImportMode: "metered"}
				So(store.Finish(ctx, job.ID, outcome, nil), ShouldBeNil)

				got, err := store.Get(ctx, job.ID)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, JobStatusSucceeded)
				So(got.BackupPath, ShouldEqual, "/backups/app.sql")
				So(got.ImportMode, ShouldEqual, "metered")
				So(got.FinishedAt, ShouldNotBeNil)
				So(got.Finished(), ShouldBeTrue)
			})

			Convey("Finishing with a stage failure should record the stage", func() {
				job, _ := store.Claim(ctx)
				pullErr := &domain.PullError{Stage: domain.StageDump, Kind: domain.KindDumpFailed, Err: errors.New("exit status 2")}
				outcome := &domain.Outcome{State: domain.StateFailed, FailedStage: domain.StageDump, Err: pullErr}
				So(store.Finish(ctx, job.ID, outcome, pullErr), ShouldBeNil)

				got, _ := store.Get(ctx, job.ID)
				So(got.Status, ShouldEqual, JobStatusFailed)
				So(got.FailedStage, ShouldEqual, "dump")
				So(got.Error, ShouldContainSubstring, "exit status 2")
			})

			Convey("Finishing after a rejected preflight should record validate", func() {
				job, _ := store.Claim(ctx)
				So(store.Finish(ctx, job.ID, nil, domain.ErrProductionRefused), ShouldBeNil)

				got, _ := store.Get(ctx, job.ID)
				So(got.Status, ShouldEqual, JobStatusFailed)
				So(got.FailedStage, ShouldEqual, "validate")
			})

			Convey("Recover should fail jobs left running", func() {
				_, _ = store.Claim(ctx)
				n, err := store.Recover(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)

				got, _ := store.Get(ctx, first)
				So(got.Status, ShouldEqual, JobStatusFailed)
				So(got.Error, ShouldContainSubstring, "interrupted")

				pending, _ := store.Get(ctx, second)
				So(pending.Status, ShouldEqual, JobStatusPending)
			})
		})

		Convey("Finish should report an unknown job", func() {
			err := store.Finish(ctx, 99, nil, nil)
			So(errors.Is(err, ErrJobNotFound), ShouldBeTrue)
		})
	})
}

func TestWorker(t *testing.T) {
	Convey("Given a store with queued jobs", t, func() {
		store := openStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for i := 0; i < 3; i++ {
			_, err := store.Enqueue(ctx, domain.JobRequest{Trigger: fmt.Sprintf("t%d", i)})
			So(err, ShouldBeNil)
		}

		Convey("When the handler succeeds, fails and panics in turn", func() {
			var seen []string
			handler := func(_ context.Context, req domain.JobRequest) (*domain.Outcome, error) {
				seen = append(seen, req.Trigger)
				switch req.Trigger {
				case "t0":
					return &domain.Outcome{State: domain.StateDone, BackupPath: "/b.sql"}, nil
				case "t1":
					err := &domain.PullError{Stage: domain.StageImport, Kind: domain.KindImportFailed, Err: errors.New("boom")}
					return &domain.Outcome{State: domain.StateFailed, FailedStage: domain.StageImport, Err: err}, err
				default:
					panic("unexpected nil map")
				}
			}

			worker := NewWorker(store, handler, 20*time.Millisecond, logger.Nop())
			done := make(chan error, 1)
			go func() { done <- worker.Run(ctx) }()

			So(waitFor(func() bool {
				jobs, _ := store.List(context.Background(), 10)
				for _, j := range jobs {
					if !j.Finished() {
						return false
					}
				}
				return true
			}), ShouldBeTrue)
			cancel()
			So(<-done, ShouldBeNil)

			Convey("Every job should run once in order and be recorded", func() {
				So(seen, ShouldResemble, []string{"t0", "t1", "t2"})

				jobs, _ := store.List(context.Background(), 10)
				So(jobs[2].Status, ShouldEqual, JobStatusSucceeded)
				So(jobs[1].Status, ShouldEqual, JobStatusFailed)
				So(jobs[1].FailedStage, ShouldEqual, "import")
				So(jobs[0].Status, ShouldEqual, JobStatusFailed)
				So(jobs[0].Error, ShouldContainSubstring, "panic: unexpected nil map")
			})
		})

		Convey("When the worker stops during a job", func() {
			handler := func(ctx context.Context, _ domain.JobRequest) (*domain.Outcome, error) {
				cancel()
				<-ctx.Done()
				return nil, ctx.Err()
			}

			worker := NewWorker(store, handler, time.Hour, logger.Nop())
			So(worker.Run(ctx), ShouldBeNil)

			Convey("The interrupted job should still be recorded and the rest left pending", func() {
				jobs, _ := store.List(context.Background(), 10)
				So(jobs[2].Status, ShouldEqual, JobStatusFailed)
				So(jobs[1].Status, ShouldEqual, JobStatusPending)
				So(jobs[0].Status, ShouldEqual, JobStatusPending)
			})
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
