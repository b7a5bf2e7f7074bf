package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	entity "parts-market/internal/domain"
	mongorepo "parts-market/internal/repository/mongodb"
	repo "parts-market/internal/repository/postgresql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- ERROR DEFINITIONS ---
var (
	ErrOfferNotFound       = errors.New("offer not found")
	ErrListingNotFound     = errors.New("listing not found")
	ErrListingUnavailable  = errors.New("listing is not open to offers")
	ErrOwnListing          = errors.New("cannot make an offer on your own listing")
	ErrInvalidAmount       = errors.New("offer amount must be positive")
	ErrMessageTooLong      = errors.New("message exceeds the allowed length")
	ErrActiveOfferExists   = errors.New("an active offer already exists for this listing")
	ErrTooManyActiveOffers = errors.New("active offer limit reached for this buyer")
	ErrStaleState          = errors.New("offer has changed since it was read")
	ErrUnavailable         = errors.New("offer store is temporarily unavailable")
)

// Bounded retry for transient store failures. Validation, authorization,
// stale-state and invalid-transition outcomes are never retried.
const (
	storeRetryAttempts = 3
	storeRetryDelay    = 200 * time.Millisecond
	storeRetryMaxDelay = 2 * time.Second
)

type OfferService struct {
	offerRepo   repo.OfferRepository
	listingRepo repo.ListingRepository
	logRepo     mongorepo.LogRepository
	offerTTL    time.Duration
	maxActive   int
}

func NewOfferService(offerRepo repo.OfferRepository, listingRepo repo.ListingRepository, logRepo mongorepo.LogRepository, offerTTL time.Duration, maxActive int) *OfferService {
	return &OfferService{
		offerRepo:   offerRepo,
		listingRepo: listingRepo,
		logRepo:     logRepo,
		offerTTL:    offerTTL,
		maxActive:   maxActive,
	}
}

// --- HELPER FUNCTIONS ---

func (s *OfferService) createAndSaveNotification(userID uuid.UUID, title, message, notiType string, relatedID uuid.UUID) {
	noti := &entity.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID.String(),
		Type:      notiType,
		Title:     title,
		Message:   message,
		RelatedID: relatedID.String(),
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	if err := s.logRepo.SaveNotification(noti); err != nil {
		log.Printf("Warning: failed to save notification for user %s: %v", userID.String(), err)
	}
}

func (s *OfferService) saveHistoryStatus(offerID uuid.UUID, oldStatus, newStatus entity.OfferStatus, changedBy string) {
	history := &entity.HistoryStatus{
		ID:          primitive.NewObjectID(),
		RelatedID:   offerID.String(),
		RelatedType: "offer",
		OldStatus:   string(oldStatus),
		NewStatus:   string(newStatus),
		ChangedBy:   changedBy,
		Timestamp:   time.Now(),
	}
	if err := s.logRepo.SaveHistoryStatus(history); err != nil {
		log.Printf("Warning: failed to save history status for offer %s: %v", offerID.String(), err)
	}
}

// withRetry re-runs op on transient store errors with a doubling, capped
// delay. The conditional update is safe to re-run after a lost ack: a write
// that already landed simply matches zero rows and flows into the
// reconciliation path.
func (s *OfferService) withRetry(ctx context.Context, op func() error) error {
	delay := storeRetryDelay
	var err error
	for attempt := 1; attempt <= storeRetryAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == storeRetryAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > storeRetryMaxDelay {
			delay = storeRetryMaxDelay
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, repo.ErrActiveOfferConflict):
		return false
	}
	return true
}

// resolveRole maps the caller to their role on this offer, if any.
func resolveRole(offer *entity.Offer, actorID uuid.UUID) (entity.ActorRole, bool) {
	switch actorID {
	case offer.BuyerID:
		return entity.RoleBuyer, true
	case offer.SellerID:
		return entity.RoleSeller, true
	}
	return "", false
}

// --- OFFER SERVICE METHODS ---

// CreateOffer opens a negotiation: validates the buyer and listing, enforces
// the one-active-offer-per-pair invariant and persists a pending offer with
// expires_at = now + TTL.
func (s *OfferService) CreateOffer(ctx context.Context, buyerID, listingID uuid.UUID, amount decimal.Decimal, message string) (*entity.Offer, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len([]rune(message)) > entity.MaxOfferMessageLen {
		return nil, ErrMessageTooLong
	}

	var listing *entity.Listing
	err := s.withRetry(ctx, func() error {
		var err error
		listing, err = s.listingRepo.GetListingByID(ctx, listingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}
	if listing.Status != entity.ListingStatusActive {
		return nil, ErrListingUnavailable
	}
	if listing.SellerID == buyerID {
		return nil, ErrOwnListing
	}

	var activeCount int
	err = s.withRetry(ctx, func() error {
		var err error
		activeCount, err = s.offerRepo.CountActiveOffersByBuyer(ctx, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if activeCount >= s.maxActive {
		return nil, ErrTooManyActiveOffers
	}

	var hasActive bool
	err = s.withRetry(ctx, func() error {
		var err error
		hasActive, err = s.offerRepo.HasActiveOffer(ctx, listingID, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if hasActive {
		return nil, ErrActiveOfferExists
	}

	now := time.Now()
	offer := &entity.Offer{
		ID:        uuid.New(),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  listing.SellerID,
		Amount:    amount,
		Currency:  listing.Currency,
		Message:   message,
		Status:    entity.OfferStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.offerTTL),
	}

	if err := s.withRetry(ctx, func() error { return s.offerRepo.CreateOffer(ctx, offer) }); err != nil {
		// The partial unique index catches the create race the pre-check missed.
		if errors.Is(err, repo.ErrActiveOfferConflict) {
			return nil, ErrActiveOfferExists
		}
		return nil, err
	}

	s.createAndSaveNotification(offer.SellerID, "New offer received",
		fmt.Sprintf("A buyer offered %s %s on your listing %q.", offer.Amount.String(), offer.Currency, listing.Title),
		entity.NotificationOfferCreated, offer.ID)
	s.saveHistoryStatus(offer.ID, "", entity.OfferStatusPending, buyerID.String())

	return offer, nil
}

// Respond applies one user action to an offer: accept, reject, counter,
// withdraw or accept_counter. The transition is decided by the pure state
// machine and persisted with a conditional update keyed on the status read
// here; a lost race is reconciled with a single re-read.
func (s *OfferService) Respond(ctx context.Context, offerID, actorID uuid.UUID, action entity.OfferAction, counterAmount decimal.NullDecimal, counterMessage string) (*entity.Offer, error) {
	if len([]rune(counterMessage)) > entity.MaxOfferMessageLen {
		return nil, ErrMessageTooLong
	}

	var offer *entity.Offer
	err := s.withRetry(ctx, func() error {
		var err error
		offer, err = s.offerRepo.GetOfferByID(ctx, offerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}

	role, ok := resolveRole(offer, actorID)
	if !ok {
		return nil, entity.ErrUnauthorized
	}

	next, effect, err := entity.ApplyTransition(*offer, entity.TransitionInput{
		Action:         action,
		Role:           role,
		CounterAmount:  counterAmount,
		CounterMessage: counterMessage,
		Now:            time.Now(),
		TTL:            s.offerTTL,
	})
	if err != nil {
		return nil, err
	}

	var matched bool
	err = s.withRetry(ctx, func() error {
		var err error
		matched, err = s.offerRepo.UpdateOfferStatus(ctx, offer.ID, offer.Status, &next)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !matched {
		return s.reconcileConflict(ctx, offer.ID, &next)
	}

	if effect == entity.SideEffectReserveListing {
		s.reserveListing(ctx, offer.ListingID)
	}

	counterpart := offer.BuyerID
	if role == entity.RoleBuyer {
		counterpart = offer.SellerID
	}
	s.createAndSaveNotification(counterpart, "Offer updated",
		fmt.Sprintf("The offer on listing %s is now %s.", offer.ListingID, next.Status),
		entity.NotificationOfferResponded, offer.ID)
	s.saveHistoryStatus(offer.ID, offer.Status, next.Status, actorID.String())

	return &next, nil
}

// ListOffers returns the caller's offers as buyer or seller, newest first.
func (s *OfferService) ListOffers(ctx context.Context, userID uuid.UUID, role entity.ActorRole) ([]entity.Offer, error) {
	var offers []entity.Offer
	err := s.withRetry(ctx, func() error {
		var err error
		if role == entity.RoleBuyer {
			offers, err = s.offerRepo.GetOffersByBuyerID(ctx, userID)
		} else {
			offers, err = s.offerRepo.GetOffersBySellerID(ctx, userID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return offers, nil
}

// reconcileConflict handles a conditional update that matched zero rows.
// The row is re-read exactly once: when the winning write produced the same
// outcome this call was after, the caller gets that row back as an
// idempotent success; anything else is a stale state.
func (s *OfferService) reconcileConflict(ctx context.Context, offerID uuid.UUID, intended *entity.Offer) (*entity.Offer, error) {
	current, err := s.offerRepo.GetOfferByID(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if current == nil {
		return nil, ErrOfferNotFound
	}
	if sameOutcome(current, intended) {
		return current, nil
	}
	return nil, ErrStaleState
}

func sameOutcome(a, b *entity.Offer) bool {
	if a.Status != b.Status {
		return false
	}
	if a.CounterAmount.Valid != b.CounterAmount.Valid {
		return false
	}
	if a.CounterAmount.Valid && !a.CounterAmount.Decimal.Equal(b.CounterAmount.Decimal) {
		return false
	}
	return a.CounterMessage == b.CounterMessage
}

// reserveListing moves the listing active -> reserved after an accept. The
// offer acceptance stands even when the listing already left active; the
// mismatch is only logged, following the same posture as other secondary
// effects.
func (s *OfferService) reserveListing(ctx context.Context, listingID uuid.UUID) {
	reserved, err := s.listingRepo.UpdateListingStatus(ctx, listingID,
		entity.ListingStatusActive, entity.ListingStatusReserved)
	if err != nil {
		log.Printf("Warning: failed to reserve listing %s: %v", listingID.String(), err)
		return
	}
	if !reserved {
		log.Printf("Warning: listing %s was no longer active when the offer was accepted", listingID.String())
	}
}

// expireOffer attempts the system expire edge for one offer. It returns
// false without error when another actor won the race, which the sweeper
// treats as a silent skip.
func (s *OfferService) expireOffer(ctx context.Context, offer entity.Offer) (bool, error) {
	next, _, err := entity.ApplyTransition(offer, entity.TransitionInput{
		Action: entity.OfferActionExpire,
		Role:   entity.RoleSystem,
		Now:    time.Now(),
	})
	if err != nil {
		if errors.Is(err, entity.ErrNotExpired) || errors.Is(err, entity.ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}

	matched, err := s.offerRepo.UpdateOfferStatus(ctx, offer.ID, offer.Status, &next)
	if err != nil {
		return false, err
	}
	if !matched {
		return false, nil
	}

	s.createAndSaveNotification(offer.BuyerID, "Offer expired",
		fmt.Sprintf("Your offer of %s %s expired without a response.", offer.Amount.String(), offer.Currency),
		entity.NotificationOfferExpired, offer.ID)
	s.saveHistoryStatus(offer.ID, offer.Status, entity.OfferStatusExpired, "system")

	return true, nil
}
