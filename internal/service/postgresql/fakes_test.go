package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	entity "parts-market/internal/domain"
	repo "parts-market/internal/repository/postgresql"

	"github.com/google/uuid"
)

// errConnReset stands in for a transient driver failure.
var errConnReset = errors.New("connection reset by peer")

// fakeOfferRepo is an in-memory OfferRepository with the same
// compare-and-swap semantics as the Postgres implementation.
type fakeOfferRepo struct {
	mu     sync.Mutex
	offers map[uuid.UUID]entity.Offer

	// beforeUpdate runs inside UpdateOfferStatus before the status check,
	// letting tests interleave a competing write. Cleared after one use.
	beforeUpdate func(r *fakeOfferRepo)

	// failures counts down transient errors returned before any call
	// succeeds.
	failures int
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[uuid.UUID]entity.Offer)}
}

func (r *fakeOfferRepo) transientFailure() bool {
	if r.failures > 0 {
		r.failures--
		return true
	}
	return false
}

func (r *fakeOfferRepo) put(offer entity.Offer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[offer.ID] = offer
}

func (r *fakeOfferRepo) get(id uuid.UUID) entity.Offer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offers[id]
}

func (r *fakeOfferRepo) CreateOffer(ctx context.Context, offer *entity.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transientFailure() {
		return errConnReset
	}
	for _, existing := range r.offers {
		if existing.ListingID == offer.ListingID && existing.BuyerID == offer.BuyerID && existing.Status.Active() {
			return repo.ErrActiveOfferConflict
		}
	}
	r.offers[offer.ID] = *offer
	return nil
}

func (r *fakeOfferRepo) GetOfferByID(ctx context.Context, offerID uuid.UUID) (*entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transientFailure() {
		return nil, errConnReset
	}
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, nil
	}
	return &offer, nil
}

func (r *fakeOfferRepo) listBy(match func(entity.Offer) bool) []entity.Offer {
	var out []entity.Offer
	for _, offer := range r.offers {
		if match(offer) {
			out = append(out, offer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeOfferRepo) GetOffersByBuyerID(ctx context.Context, buyerID uuid.UUID) ([]entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transientFailure() {
		return nil, errConnReset
	}
	return r.listBy(func(o entity.Offer) bool { return o.BuyerID == buyerID }), nil
}

func (r *fakeOfferRepo) GetOffersBySellerID(ctx context.Context, sellerID uuid.UUID) ([]entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transientFailure() {
		return nil, errConnReset
	}
	return r.listBy(func(o entity.Offer) bool { return o.SellerID == sellerID }), nil
}

func (r *fakeOfferRepo) UpdateOfferStatus(ctx context.Context, offerID uuid.UUID, expected entity.OfferStatus, next *entity.Offer) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transientFailure() {
		return false, errConnReset
	}
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook(r)
	}
	current, ok := r.offers[offerID]
	if !ok || current.Status != expected {
		return false, nil
	}
	current.Status = next.Status
	current.CounterAmount = next.CounterAmount
	current.CounterMessage = next.CounterMessage
	current.ExpiresAt = next.ExpiresAt
	current.RespondedAt = next.RespondedAt
	r.offers[offerID] = current
	return true, nil
}

func (r *fakeOfferRepo) GetExpiredActiveOffers(ctx context.Context, now time.Time, limit int) ([]entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transientFailure() {
		return nil, errConnReset
	}
	out := r.listBy(func(o entity.Offer) bool {
		return o.Status.Active() && !o.ExpiresAt.After(now)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeOfferRepo) CountActiveOffersByBuyer(ctx context.Context, buyerID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transientFailure() {
		return 0, errConnReset
	}
	count := 0
	for _, offer := range r.offers {
		if offer.BuyerID == buyerID && offer.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (r *fakeOfferRepo) HasActiveOffer(ctx context.Context, listingID, buyerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transientFailure() {
		return false, errConnReset
	}
	for _, offer := range r.offers {
		if offer.ListingID == listingID && offer.BuyerID == buyerID && offer.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[uuid.UUID]entity.Listing
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[uuid.UUID]entity.Listing)}
}

func (r *fakeListingRepo) put(listing entity.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID] = listing
}

func (r *fakeListingRepo) get(id uuid.UUID) entity.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listings[id]
}

func (r *fakeListingRepo) CreateListing(ctx context.Context, listing *entity.Listing) error {
	r.put(*listing)
	return nil
}

func (r *fakeListingRepo) GetListingByID(ctx context.Context, listingID uuid.UUID) (*entity.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[listingID]
	if !ok {
		return nil, nil
	}
	return &listing, nil
}

func (r *fakeListingRepo) GetListingsBySellerID(ctx context.Context, sellerID uuid.UUID) ([]entity.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Listing
	for _, listing := range r.listings {
		if listing.SellerID == sellerID {
			out = append(out, listing)
		}
	}
	return out, nil
}

func (r *fakeListingRepo) UpdateListingStatus(ctx context.Context, listingID uuid.UUID, expected, next entity.ListingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[listingID]
	if !ok || listing.Status != expected {
		return false, nil
	}
	listing.Status = next
	r.listings[listingID] = listing
	return true, nil
}

// fakeLogRepo records emitted events instead of writing to Mongo.
type fakeLogRepo struct {
	mu            sync.Mutex
	notifications []entity.Notification
	history       []entity.HistoryStatus
}

func (r *fakeLogRepo) SaveNotification(n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *fakeLogRepo) SaveHistoryStatus(h *entity.HistoryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, *h)
	return nil
}

func (r *fakeLogRepo) notificationsOfType(notiType string) []entity.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Notification
	for _, n := range r.notifications {
		if n.Type == notiType {
			out = append(out, n)
		}
	}
	return out
}
