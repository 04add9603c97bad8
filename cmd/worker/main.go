// Command worker is a demonstration crawl worker: it drains an
// in-memory taskqueue, acquires a token per domain before "fetching",
// and reports the outcome back through the stats reporter, exercising
// the token consumer and stats reporter against a real store end to end.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/PuneetDabral/crawlreg/canonical"
	"github.com/PuneetDabral/crawlreg/config"
	"github.com/PuneetDabral/crawlreg/logger"
	"github.com/PuneetDabral/crawlreg/redisclient"
	"github.com/PuneetDabral/crawlreg/stats"
	"github.com/PuneetDabral/crawlreg/taskqueue"
	"github.com/PuneetDabral/crawlreg/tokens"
	"github.com/rs/zerolog"
)

// seedSources is a fixed demonstration list standing in for a real
// crawl frontier fed by the catalog's image listings.
var seedSources = []string{
	"https://images.staticflickr.com/a.jpg",
	"https://images.staticflickr.com/b.jpg",
	"https://upload.wikimedia.org/c.png",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg)
	log.Info().Msg("crawl worker starting")

	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := rc.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("store ping failed")
	}

	canon := canonical.New(log)
	reporter := stats.New(rc.Raw, log, cfg.HardHaltSampleSize, nil)
	consumer := tokens.New(rc.Raw, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q := taskqueue.New()
	for _, url := range seedSources {
		domain := canon.Canonicalise(url).Key()
		// A domain must be in known_tlds before the regulator will ever
		// write it a token bucket; without this the consumer would wait
		// on a bucket key that's never created.
		if err := reporter.UpdateTLDs(ctx, domain); err != nil {
			log.Error().Err(err).Str("domain", domain).Msg("update_tlds failed")
		}
		q.Push(taskqueue.Task{Domain: domain, URL: url})
	}

	runWorker(ctx, log, q, consumer, reporter)
	log.Info().Msg("crawl worker stopped")
}

// runWorker drains the queue until ctx is cancelled, reinserting each
// task after processing so the demonstration loop runs continuously.
func runWorker(ctx context.Context, log zerolog.Logger, q *taskqueue.Queue, consumer *tokens.Consumer, reporter *stats.Reporter) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, ok := q.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
				continue
			}
		}

		_, err := consumer.Acquire(ctx, task.Domain)
		if err != nil {
			if errors.Is(err, tokens.ErrHalted) {
				log.Debug().Str("domain", task.Domain).Msg("domain halted, requeueing task")
			}
			q.Push(task)
			continue
		}

		code := simulateFetch(task.URL)
		if code == http.StatusOK {
			if err := reporter.RecordSuccess(ctx, task.Domain); err != nil {
				log.Error().Err(err).Str("domain", task.Domain).Msg("record success failed")
			}
		} else {
			if err := reporter.RecordError(ctx, task.Domain, strconv.Itoa(code)); err != nil {
				log.Error().Err(err).Str("domain", task.Domain).Msg("record error failed")
			}
		}

		q.Push(task)
	}
}

// simulateFetch stands in for the real image fetch: it always reports
// success so the demonstration loop has a predictable steady state.
func simulateFetch(url string) int {
	return http.StatusOK
}
