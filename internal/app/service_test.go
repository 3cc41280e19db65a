package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rankboard/internal/adapters/repository"
	service "github.com/okian/rankboard/internal/app"
	"github.com/okian/rankboard/internal/domain/dedupe"
	"github.com/okian/rankboard/internal/domain/model"
	"github.com/okian/rankboard/internal/domain/scoring"
	"github.com/okian/rankboard/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startService(opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithRebuildInterval(0), service.WithWorkerCount(2)}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func stopService(svc *service.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	So(svc.Stop(ctx), ShouldBeNil)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(10),
			service.WithIdempotencySize(5),
			service.WithRebuildInterval(0),
		)

		Convey("When it has not been started", func() {
			stats := svc.GetStats()

			Convey("Then stats should report the configuration only", func() {
				So(stats["started"], ShouldBeFalse)
				So(stats["workerCount"], ShouldEqual, 3)
				So(stats["queueSize"], ShouldEqual, 10)
				_, ok := stats["customers"]
				So(ok, ShouldBeFalse)
			})

			Convey("Then batches should be refused", func() {
				_, err := svc.EnqueueBatch(context.Background(), []model.ScoreUpdate{{CustomerID: 1}})
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})

			Convey("Then updates and lookups should be refused", func() {
				_, err := svc.UpdateScore(context.Background(), 1, scoring.FromInt(5), "")
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				_, err = svc.UpdateScore(context.Background(), 1, scoring.FromInt(5), "k1")
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				_, err = svc.Customer(context.Background(), 1)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})

			Convey("Then queries should return nothing", func() {
				So(svc.RankRange(context.Background(), 1, 10), ShouldBeEmpty)
				So(svc.Neighborhood(context.Background(), 1, 2, 2), ShouldBeEmpty)
				So(svc.Rebuild(context.Background()).Rebuilt, ShouldBeFalse)
			})

			Convey("Then stopping should be a no-op", func() {
				So(svc.Stop(context.Background()), ShouldBeNil)
			})
		})

		Convey("When it is started twice and stopped", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			stats := svc.GetStats()
			stopService(svc)

			Convey("Then stats should have reported the running state", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["customers"], ShouldEqual, 0)
				So(stats["ranked"], ShouldEqual, 0)
				So(svc.GetStats()["started"], ShouldBeFalse)
			})
		})
	})
}

func TestService_UpdateAndQuery(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := startService()
		defer stopService(svc)
		ctx := context.Background()

		for id := int64(1); id <= 10; id++ {
			_, err := svc.UpdateScore(ctx, id, scoring.FromInt(1100-100*id), "")
			So(err, ShouldBeNil)
		}

		Convey("When a rebuild is requested", func() {
			res := svc.Rebuild(ctx)

			Convey("Then it should report the published snapshot", func() {
				So(res.Rebuilt, ShouldBeTrue)
				So(res.Generation, ShouldEqual, 1)
				So(res.Ranked, ShouldEqual, 10)
			})

			Convey("Then range and neighborhood queries should read it", func() {
				page := svc.RankRange(ctx, 3, 5)
				So(len(page), ShouldEqual, 3)
				So(page[0].CustomerID, ShouldEqual, 3)
				So(page[0].Score.String(), ShouldEqual, "800")
				So(page[0].Rank, ShouldEqual, 3)

				around := svc.Neighborhood(ctx, 5, 2, 2)
				So(len(around), ShouldEqual, 5)
				So(around[0].CustomerID, ShouldEqual, 3)
				So(around[4].CustomerID, ShouldEqual, 7)
			})

			Convey("Then a second rebuild should report nothing new", func() {
				res2 := svc.Rebuild(ctx)
				So(res2.Rebuilt, ShouldBeFalse)
				So(res2.Generation, ShouldEqual, 1)
			})
		})

		Convey("When looking up a single customer", func() {
			svc.Rebuild(ctx)
			e, err := svc.Customer(ctx, 2)
			_, missing := svc.Customer(ctx, 99)

			Convey("Then the live entry should be returned", func() {
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
				So(e.Score.String(), ShouldEqual, "900")
				So(errors.Is(missing, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When an update is invalid", func() {
			_, errID := svc.UpdateScore(ctx, 0, scoring.FromInt(1), "")
			_, errDelta := svc.UpdateScore(ctx, 1, scoring.FromInt(1001), "")
			_, errKey := svc.UpdateScore(ctx, 1, scoring.FromInt(1), strings.Repeat("k", dedupe.MaxKeyLength+1))

			Convey("Then each should be rejected with its sentinel", func() {
				So(errors.Is(errID, repository.ErrInvalidCustomerID), ShouldBeTrue)
				So(errors.Is(errDelta, scoring.ErrDeltaOutOfRange), ShouldBeTrue)
				So(errors.Is(errKey, dedupe.ErrKeyTooLong), ShouldBeTrue)
			})
		})

		Convey("When stats are read", func() {
			svc.Rebuild(ctx)
			stats := svc.GetStats()

			Convey("Then they should describe the store", func() {
				So(stats["customers"], ShouldEqual, 10)
				So(stats["ranked"], ShouldEqual, 10)
				So(stats["generation"], ShouldEqual, uint64(1))
				So(stats["queueLength"], ShouldEqual, 0)
			})
		})
	})
}

func TestService_Idempotency(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := startService()
		defer stopService(svc)
		ctx := context.Background()

		Convey("When the same key is sent twice", func() {
			first, err1 := svc.UpdateScore(ctx, 1, scoring.FromInt(10), "req-1")
			second, err2 := svc.UpdateScore(ctx, 1, scoring.FromInt(10), "req-1")

			Convey("Then the delta should be applied once", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldEqual, scoring.FromInt(10))
				So(second, ShouldEqual, scoring.FromInt(10))
				e, _ := svc.Customer(ctx, 1)
				So(e.Score.String(), ShouldEqual, "10")
			})
		})

		Convey("When the same key is used for different customers", func() {
			_, _ = svc.UpdateScore(ctx, 1, scoring.FromInt(10), "shared")
			got, _ := svc.UpdateScore(ctx, 2, scoring.FromInt(4), "shared")

			Convey("Then each customer should get its own application", func() {
				So(got, ShouldEqual, scoring.FromInt(4))
			})
		})

		Convey("When many goroutines race with one key", func() {
			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = svc.UpdateScore(ctx, 5, scoring.FromInt(3), "race")
				}()
			}
			wg.Wait()

			Convey("Then the score should reflect a single application", func() {
				e, _ := svc.Customer(ctx, 5)
				So(e.Score.String(), ShouldEqual, "3")
			})
		})

		Convey("When no key is sent", func() {
			_, _ = svc.UpdateScore(ctx, 3, scoring.FromInt(2), "")
			_, _ = svc.UpdateScore(ctx, 3, scoring.FromInt(2), "")

			Convey("Then every call should apply", func() {
				e, _ := svc.Customer(ctx, 3)
				So(e.Score.String(), ShouldEqual, "4")
			})
		})
	})
}

func TestService_EnqueueBatch(t *testing.T) {
	Convey("Given a running service with a bulk ingest queue", t, func() {
		svc := startService(service.WithQueueSize(1000))
		ctx := context.Background()

		Convey("When a batch is accepted and the service stops", func() {
			batch := make([]model.ScoreUpdate, 0, 100)
			for i := 0; i < 100; i++ {
				batch = append(batch, model.ScoreUpdate{CustomerID: int64(i%4 + 1), Delta: scoring.FromInt(1)})
			}
			batch = append(batch,
				model.ScoreUpdate{CustomerID: 9, Delta: scoring.FromInt(5), IdempotencyKey: "b1"},
				model.ScoreUpdate{CustomerID: 9, Delta: scoring.FromInt(5), IdempotencyKey: "b1"},
			)
			n, err := svc.EnqueueBatch(ctx, batch)
			stopService(svc)

			Convey("Then every queued update should have been applied", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 102)
				for id := int64(1); id <= 4; id++ {
					e, err := svc.Customer(ctx, id)
					So(err, ShouldBeNil)
					So(e.Score.String(), ShouldEqual, "25")
				}
				e, _ := svc.Customer(ctx, 9)
				So(e.Score.String(), ShouldEqual, "5")
			})
		})
	})

	Convey("Given a service whose start context is cancelled before it stops", t, func() {
		startCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(
			service.WithRebuildInterval(0),
			service.WithWorkerCount(1),
			service.WithQueueSize(20000),
		)
		So(svc.Start(startCtx), ShouldBeNil)

		batch := make([]model.ScoreUpdate, 20000)
		for i := range batch {
			batch[i] = model.ScoreUpdate{CustomerID: int64(i%100 + 1), Delta: scoring.FromInt(1)}
		}
		n, err := svc.EnqueueBatch(context.Background(), batch)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 20000)

		cancel()
		stopService(svc)

		Convey("Then every accepted update should still be applied", func() {
			for id := int64(1); id <= 100; id++ {
				e, err := svc.Customer(context.Background(), id)
				So(err, ShouldBeNil)
				So(e.Score.String(), ShouldEqual, "200")
			}
			So(svc.GetStats()["started"], ShouldBeFalse)
		})
	})
}
