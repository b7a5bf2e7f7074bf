package service

import (
	"context"
	"log/slog"
	"time"

	entity "parts-market/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Sweep tuning. The batch bound keeps one cycle short; anything left over is
// picked up by the next tick.
const (
	sweepBatchSize   = 100
	sweepRowTimeout  = 5 * time.Second
	sweepConcurrency = 4
)

// OfferSweeper periodically expires offers whose expires_at has passed while
// they are still pending or countered. It holds no locks: each row goes
// through the same conditional update as user actions, so racing a
// just-completed response simply loses and is skipped. Multiple replicas can
// run the sweeper concurrently.
type OfferSweeper struct {
	service  *OfferService
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewOfferSweeper(service *OfferService, interval time.Duration) *OfferSweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &OfferSweeper{
		service:  service,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. Safe to call in its own
// goroutine.
func (sw *OfferSweeper) Start() {
	defer close(sw.done)
	slog.Info("offer sweeper started", slog.Duration("interval", sw.interval))

	sw.sweepOnce(sw.ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.sweepOnce(sw.ctx)
		case <-sw.ctx.Done():
			slog.Info("offer sweeper stopped")
			return
		}
	}
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (sw *OfferSweeper) Stop() {
	sw.cancel()
	<-sw.done
}

type sweepResult struct {
	won bool
	err error
}

// sweepOnce scans one batch of overdue active offers and expires each row
// independently, so a single failed row never aborts the rest.
func (sw *OfferSweeper) sweepOnce(ctx context.Context) {
	var batch []entity.Offer
	err := sw.service.withRetry(ctx, func() error {
		var err error
		batch, err = sw.service.offerRepo.GetExpiredActiveOffers(ctx, time.Now(), sweepBatchSize)
		return err
	})
	if err != nil {
		slog.Error("sweep scan failed", slog.String("error", err.Error()))
		return
	}
	if len(batch) == 0 {
		return
	}

	results := make([]sweepResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	for i, offer := range batch {
		i, offer := i, offer
		g.Go(func() error {
			rowCtx, cancel := context.WithTimeout(gctx, sweepRowTimeout)
			defer cancel()

			won, err := sw.service.expireOffer(rowCtx, offer)
			results[i] = sweepResult{won: won, err: err}
			if err != nil {
				slog.Error("failed to expire offer",
					slog.String("offer_id", offer.ID.String()),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}
	_ = g.Wait()

	var expired, skipped, failed int
	for _, res := range results {
		switch {
		case res.err != nil:
			failed++
		case res.won:
			expired++
		default:
			skipped++
		}
	}

	slog.Info("sweep cycle finished",
		slog.Int("expired", expired),
		slog.Int("lost_race", skipped),
		slog.Int("failed", failed))
}
