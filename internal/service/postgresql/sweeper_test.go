package service

import (
	"context"
	"testing"
	"time"

	entity "parts-market/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func seedOffer(env *testEnv, status entity.OfferStatus, expiresAt time.Time) entity.Offer {
	offer := entity.Offer{
		ID:        uuid.New(),
		ListingID: uuid.New(),
		BuyerID:   uuid.New(),
		SellerID:  uuid.New(),
		Amount:    decimal.RequireFromString("50.00"),
		Currency:  "GBP",
		Status:    status,
		CreatedAt: expiresAt.Add(-testTTL),
		ExpiresAt: expiresAt,
	}
	env.offers.put(offer)
	return offer
}

func TestSweepOnceExpiresOverdueOffers(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	overduePending := seedOffer(env, entity.OfferStatusPending, past)
	overdueCountered := seedOffer(env, entity.OfferStatusCountered, past)
	fresh := seedOffer(env, entity.OfferStatusPending, future)
	accepted := seedOffer(env, entity.OfferStatusAccepted, past)

	sw := NewOfferSweeper(env.svc, time.Minute)
	sw.sweepOnce(context.Background())

	for _, id := range []uuid.UUID{overduePending.ID, overdueCountered.ID} {
		if got := env.offers.get(id).Status; got != entity.OfferStatusExpired {
			t.Fatalf("overdue offer %s: got status %s, want expired", id, got)
		}
	}
	if got := env.offers.get(fresh.ID).Status; got != entity.OfferStatusPending {
		t.Fatalf("fresh offer swept early: %s", got)
	}
	if got := env.offers.get(accepted.ID).Status; got != entity.OfferStatusAccepted {
		t.Fatalf("terminal offer touched by sweep: %s", got)
	}

	if got := len(env.logs.notificationsOfType(entity.NotificationOfferExpired)); got != 2 {
		t.Fatalf("got %d offer_expired notifications, want 2", got)
	}

	// Expiry is a system transition, not a user response.
	if env.offers.get(overduePending.ID).RespondedAt != nil {
		t.Fatalf("sweep set responded_at")
	}
}

func TestSweepOnceSkipsLostRace(t *testing.T) {
	env := newTestEnv(t)
	overdue := seedOffer(env, entity.OfferStatusPending, time.Now().Add(-time.Minute))

	// A user action lands between the scan and the conditional write.
	env.offers.beforeUpdate = func(r *fakeOfferRepo) {
		current := r.offers[overdue.ID]
		now := time.Now()
		current.Status = entity.OfferStatusWithdrawn
		current.RespondedAt = &now
		r.offers[overdue.ID] = current
	}

	sw := NewOfferSweeper(env.svc, time.Minute)
	sw.sweepOnce(context.Background())

	if got := env.offers.get(overdue.ID).Status; got != entity.OfferStatusWithdrawn {
		t.Fatalf("sweep clobbered the user action: %s", got)
	}
	if got := len(env.logs.notificationsOfType(entity.NotificationOfferExpired)); got != 0 {
		t.Fatalf("lost race emitted %d expiry notifications", got)
	}
}

func TestSweepOnceEmptyBatch(t *testing.T) {
	env := newTestEnv(t)
	sw := NewOfferSweeper(env.svc, time.Minute)
	sw.sweepOnce(context.Background())

	if got := len(env.logs.notificationsOfType(entity.NotificationOfferExpired)); got != 0 {
		t.Fatalf("empty sweep emitted %d notifications", got)
	}
}

func TestSweeperStartStop(t *testing.T) {
	env := newTestEnv(t)
	seedOffer(env, entity.OfferStatusPending, time.Now().Add(-time.Minute))

	sw := NewOfferSweeper(env.svc, time.Hour)
	go sw.Start()

	// The first sweep runs immediately, before any tick.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(env.logs.notificationsOfType(entity.NotificationOfferExpired)) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("initial sweep did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		sw.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}
}
