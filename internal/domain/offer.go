package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxOfferMessageLen bounds buyer and seller messages attached to an offer.
const MaxOfferMessageLen = 500

type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusRejected  OfferStatus = "rejected"
	OfferStatusCountered OfferStatus = "countered"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusWithdrawn OfferStatus = "withdrawn"
)

// Active reports whether the offer still awaits a response from either side.
func (s OfferStatus) Active() bool {
	return s == OfferStatusPending || s == OfferStatusCountered
}

// Terminal reports whether no further transitions are permitted.
func (s OfferStatus) Terminal() bool {
	switch s {
	case OfferStatusAccepted, OfferStatusRejected, OfferStatusExpired, OfferStatusWithdrawn:
		return true
	}
	return false
}

type OfferAction string

const (
	OfferActionAccept        OfferAction = "accept"
	OfferActionReject        OfferAction = "reject"
	OfferActionCounter       OfferAction = "counter"
	OfferActionWithdraw      OfferAction = "withdraw"
	OfferActionAcceptCounter OfferAction = "accept_counter"

	// OfferActionExpire is reserved for the sweeper and is never accepted
	// from a client.
	OfferActionExpire OfferAction = "expire"
)

var ErrUnknownAction = errors.New("unknown offer action")

// ParseOfferAction validates a client-supplied action string against the
// closed set of user actions. "expire" is rejected here on purpose.
func ParseOfferAction(s string) (OfferAction, error) {
	switch OfferAction(s) {
	case OfferActionAccept, OfferActionReject, OfferActionCounter,
		OfferActionWithdraw, OfferActionAcceptCounter:
		return OfferAction(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

type ActorRole string

const (
	RoleBuyer  ActorRole = "buyer"
	RoleSeller ActorRole = "seller"
	RoleSystem ActorRole = "system"
)

var ErrUnknownRole = errors.New("role must be buyer or seller")

// ParseActorRole validates the role query parameter of the list endpoint.
func ParseActorRole(s string) (ActorRole, error) {
	switch ActorRole(s) {
	case RoleBuyer, RoleSeller:
		return ActorRole(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Offer is a buyer's proposed price for a listing. ListingID, BuyerID and
// SellerID are immutable after creation; everything else changes only through
// the transition table, persisted with the store's conditional update.
type Offer struct {
	ID             uuid.UUID           `json:"id"`
	ListingID      uuid.UUID           `json:"listing_id"`
	BuyerID        uuid.UUID           `json:"buyer_id"`
	SellerID       uuid.UUID           `json:"seller_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Currency       string              `json:"currency"`
	Message        string              `json:"message,omitempty"`
	Status         OfferStatus         `json:"status"`
	CounterAmount  decimal.NullDecimal `json:"counter_amount"`
	CounterMessage string              `json:"counter_message,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	ExpiresAt      time.Time           `json:"expires_at"`
	RespondedAt    *time.Time          `json:"responded_at,omitempty"`
}

type CreateOfferInput struct {
	ListingID string `json:"listing_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Message   string `json:"message"`
}

type ManageOfferInput struct {
	OfferID        string `json:"offer_id" binding:"required"`
	Action         string `json:"action" binding:"required"`
	CounterAmount  string `json:"counter_amount"`
	CounterMessage string `json:"counter_message"`
}
