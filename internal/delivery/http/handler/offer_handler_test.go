package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	entity "parts-market/internal/domain"
	service "parts-market/internal/service/postgresql"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memOfferRepo and friends are just enough of the store contracts to stand
// up a real service behind the handlers.
type memOfferRepo struct {
	mu     sync.Mutex
	offers map[uuid.UUID]entity.Offer
}

func (r *memOfferRepo) CreateOffer(ctx context.Context, offer *entity.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[offer.ID] = *offer
	return nil
}

func (r *memOfferRepo) GetOfferByID(ctx context.Context, offerID uuid.UUID) (*entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, nil
	}
	return &offer, nil
}

func (r *memOfferRepo) GetOffersByBuyerID(ctx context.Context, buyerID uuid.UUID) ([]entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Offer
	for _, offer := range r.offers {
		if offer.BuyerID == buyerID {
			out = append(out, offer)
		}
	}
	return out, nil
}

func (r *memOfferRepo) GetOffersBySellerID(ctx context.Context, sellerID uuid.UUID) ([]entity.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Offer
	for _, offer := range r.offers {
		if offer.SellerID == sellerID {
			out = append(out, offer)
		}
	}
	return out, nil
}

func (r *memOfferRepo) UpdateOfferStatus(ctx context.Context, offerID uuid.UUID, expected entity.OfferStatus, next *entity.Offer) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (r *memOfferRepo) GetExpiredActiveOffers(ctx context.Context, now time.Time, limit int) ([]entity.Offer, error) {
	return nil, nil
}

func (r *memOfferRepo) CountActiveOffersByBuyer(ctx context.Context, buyerID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, offer := range r.offers {
		if offer.BuyerID == buyerID && offer.Status.Active() {
			count++
		}
	}
	return count, nil
}

func (r *memOfferRepo) HasActiveOffer(ctx context.Context, listingID, buyerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, offer := range r.offers {
		if offer.ListingID == listingID && offer.BuyerID == buyerID && offer.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

type memListingRepo struct {
	mu       sync.Mutex
	listings map[uuid.UUID]entity.Listing
}

func (r *memListingRepo) CreateListing(ctx context.Context, listing *entity.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[listing.ID] = *listing
	return nil
}

func (r *memListingRepo) GetListingByID(ctx context.Context, listingID uuid.UUID) (*entity.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[listingID]
	if !ok {
		return nil, nil
	}
	return &listing, nil
}

func (r *memListingRepo) GetListingsBySellerID(ctx context.Context, sellerID uuid.UUID) ([]entity.Listing, error) {
	return nil, nil
}

func (r *memListingRepo) UpdateListingStatus(ctx context.Context, listingID uuid.UUID, expected, next entity.ListingStatus) (bool, error) {
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

type nopLogRepo struct{}

func (nopLogRepo) SaveNotification(*entity.Notification) error   { return nil }
func (nopLogRepo) SaveHistoryStatus(*entity.HistoryStatus) error { return nil }

type offerAPI struct {
	router    *gin.Engine
	buyerID   uuid.UUID
	sellerID  uuid.UUID
	listingID uuid.UUID
}

// newOfferAPI wires the offer routes with an identity middleware that trusts
// the X-User-ID header instead of a JWT.
func newOfferAPI(t *testing.T) *offerAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &offerAPI{
		buyerID:   uuid.New(),
		sellerID:  uuid.New(),
		listingID: uuid.New(),
	}

	listings := &memListingRepo{listings: map[uuid.UUID]entity.Listing{
		api.listingID: {
			ID:       api.listingID,
			SellerID: api.sellerID,
			Title:    "turbocharger",
			Price:    decimal.RequireFromString("400.00"),
			Currency: "GBP",
			Status:   entity.ListingStatusActive,
		},
	}}
	offers := &memOfferRepo{offers: make(map[uuid.UUID]entity.Offer)}

	svc := service.NewOfferService(offers, listings, nopLogRepo{}, 48*time.Hour, 10)
	h := NewOfferHandler(svc)

	router := gin.New()
	group := router.Group("/api/offers", func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetHeader("X-User-ID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set("user_id", userID)
	})
	group.POST("", h.CreateOffer)
	group.PATCH("/manage", h.ManageOffer)
	group.GET("", h.ListOffers)

	api.router = router
	return api
}

func (api *offerAPI) do(t *testing.T, method, path string, asUser uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", asUser.String())
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func (api *offerAPI) createOffer(t *testing.T, amount string) entity.Offer {
	t.Helper()
	w := api.do(t, http.MethodPost, "/api/offers", api.buyerID, gin.H{
		"listing_id": api.listingID.String(),
		"amount":     amount,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create offer: got %d, body %s", w.Code, w.Body.String())
	}
	var offer entity.Offer
	if err := json.Unmarshal(w.Body.Bytes(), &offer); err != nil {
		t.Fatalf("decode offer: %v", err)
	}
	return offer
}

func TestCreateOfferEndpoint(t *testing.T) {
	api := newOfferAPI(t)

	offer := api.createOffer(t, "350.00")
	if offer.Status != entity.OfferStatusPending {
		t.Fatalf("got status %s, want pending", offer.Status)
	}
	if offer.BuyerID != api.buyerID || offer.SellerID != api.sellerID {
		t.Fatalf("parties not wired from listing: %+v", offer)
	}

	// The same pair again conflicts.
	w := api.do(t, http.MethodPost, "/api/offers", api.buyerID, gin.H{
		"listing_id": api.listingID.String(),
		"amount":     "360.00",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate offer: got %d, want 409", w.Code)
	}
}

func TestCreateOfferEndpointBadInput(t *testing.T) {
	api := newOfferAPI(t)

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing amount", gin.H{"listing_id": api.listingID.String()}, http.StatusBadRequest},
		{"malformed amount", gin.H{"listing_id": api.listingID.String(), "amount": "a lot"}, http.StatusBadRequest},
		{"malformed listing id", gin.H{"listing_id": "nope", "amount": "10"}, http.StatusBadRequest},
		{"unknown listing", gin.H{"listing_id": uuid.NewString(), "amount": "10"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/offers", api.buyerID, tc.body)
			if w.Code != tc.want {
				t.Fatalf("got %d, want %d, body %s", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestManageOfferEndpoint(t *testing.T) {
	api := newOfferAPI(t)
	offer := api.createOffer(t, "350.00")

	// The buyer cannot accept their own offer.
	w := api.do(t, http.MethodPatch, "/api/offers/manage", api.buyerID, gin.H{
		"offer_id": offer.ID.String(),
		"action":   "accept",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("buyer accept: got %d, want 403", w.Code)
	}

	// Seller counters, buyer accepts the counter.
	w = api.do(t, http.MethodPatch, "/api/offers/manage", api.sellerID, gin.H{
		"offer_id":       offer.ID.String(),
		"action":         "counter",
		"counter_amount": "380.00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("counter: got %d, body %s", w.Code, w.Body.String())
	}
	var countered entity.Offer
	if err := json.Unmarshal(w.Body.Bytes(), &countered); err != nil {
		t.Fatalf("decode countered offer: %v", err)
	}
	if countered.Status != entity.OfferStatusCountered {
		t.Fatalf("got status %s, want countered", countered.Status)
	}

	w = api.do(t, http.MethodPatch, "/api/offers/manage", api.buyerID, gin.H{
		"offer_id": offer.ID.String(),
		"action":   "accept_counter",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("accept_counter: got %d, body %s", w.Code, w.Body.String())
	}

	// Acting on the now-terminal offer is a conflict.
	w = api.do(t, http.MethodPatch, "/api/offers/manage", api.sellerID, gin.H{
		"offer_id": offer.ID.String(),
		"action":   "reject",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("reject after accept: got %d, want 409", w.Code)
	}
}

func TestManageOfferEndpointRejectsUnknownAction(t *testing.T) {
	api := newOfferAPI(t)
	offer := api.createOffer(t, "350.00")

	for _, action := range []string{"expire", "escalate", ""} {
		w := api.do(t, http.MethodPatch, "/api/offers/manage", api.sellerID, gin.H{
			"offer_id": offer.ID.String(),
			"action":   action,
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("action %q: got %d, want 400", action, w.Code)
		}
	}
}

func TestListOffersEndpoint(t *testing.T) {
	api := newOfferAPI(t)
	api.createOffer(t, "350.00")

	w := api.do(t, http.MethodGet, "/api/offers?role=buyer", api.buyerID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list as buyer: got %d", w.Code)
	}
	var offers []entity.Offer
	if err := json.Unmarshal(w.Body.Bytes(), &offers); err != nil {
		t.Fatalf("decode offers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("buyer list: got %d offers, want 1", len(offers))
	}

	w = api.do(t, http.MethodGet, "/api/offers?role=seller", api.sellerID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list as seller: got %d", w.Code)
	}

	// A caller with no offers gets an empty array, not null.
	w = api.do(t, http.MethodGet, "/api/offers?role=buyer", uuid.New(), nil)
	if got := w.Body.String(); got != "[]" {
		t.Fatalf("empty list body: got %s, want []", got)
	}

	w = api.do(t, http.MethodGet, "/api/offers?role=admin", api.buyerID, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad role: got %d, want 400", w.Code)
	}
}
