package entity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition     = errors.New("action is not valid for the offer's current status")
	ErrUnauthorized          = errors.New("actor does not hold the role required for this action")
	ErrCounterAmountRequired = errors.New("counter amount is required and must be positive")
	ErrNotExpired            = errors.New("offer has not reached its expiry time")
)

// SideEffect tells the service what must happen alongside a successful
// transition, beyond persisting the offer itself.
type SideEffect int

const (
	SideEffectNone SideEffect = iota
	// SideEffectReserveListing marks the listing reserved after an accept.
	SideEffectReserveListing
)

// TransitionInput carries everything the state machine needs to decide.
// The machine itself performs no I/O.
type TransitionInput struct {
	Action         OfferAction
	Role           ActorRole
	CounterAmount  decimal.NullDecimal
	CounterMessage string
	Now            time.Time
	TTL            time.Duration // re-arms expires_at on counter
}

type edge struct {
	to     OfferStatus
	role   ActorRole
	effect SideEffect
}

// transitions is the single source of truth for the offer state machine.
// Any (status, action) pair missing here is an invalid transition.
var transitions = map[OfferStatus]map[OfferAction]edge{
	OfferStatusPending: {
		OfferActionAccept:   {to: OfferStatusAccepted, role: RoleSeller, effect: SideEffectReserveListing},
		OfferActionReject:   {to: OfferStatusRejected, role: RoleSeller},
		OfferActionCounter:  {to: OfferStatusCountered, role: RoleSeller},
		OfferActionWithdraw: {to: OfferStatusWithdrawn, role: RoleBuyer},
		OfferActionExpire:   {to: OfferStatusExpired, role: RoleSystem},
	},
	OfferStatusCountered: {
		OfferActionAcceptCounter: {to: OfferStatusAccepted, role: RoleBuyer, effect: SideEffectReserveListing},
		OfferActionReject:        {to: OfferStatusRejected, role: RoleBuyer},
		OfferActionExpire:        {to: OfferStatusExpired, role: RoleSystem},
	},
}

// ApplyTransition evaluates one edge of the state machine against a copy of
// the offer and returns the transitioned copy. The input offer is never
// mutated, so a failed call leaves the caller's record untouched.
//
// Role is checked only after the edge is found: a defined edge attempted by
// the wrong actor is an authorization failure, while an undefined edge is an
// invalid transition regardless of who asked.
func ApplyTransition(o Offer, in TransitionInput) (Offer, SideEffect, error) {
	byAction, ok := transitions[o.Status]
	if !ok {
		return o, SideEffectNone, ErrInvalidTransition
	}
	e, ok := byAction[in.Action]
	if !ok {
		return o, SideEffectNone, ErrInvalidTransition
	}
	if e.role != in.Role {
		return o, SideEffectNone, ErrUnauthorized
	}

	switch in.Action {
	case OfferActionCounter:
		if !in.CounterAmount.Valid || !in.CounterAmount.Decimal.IsPositive() {
			return o, SideEffectNone, ErrCounterAmountRequired
		}
		o.CounterAmount = in.CounterAmount
		o.CounterMessage = in.CounterMessage
		o.ExpiresAt = in.Now.Add(in.TTL)
		now := in.Now
		o.RespondedAt = &now
	case OfferActionExpire:
		if in.Now.Before(o.ExpiresAt) {
			return o, SideEffectNone, ErrNotExpired
		}
		// responded_at stays unset: expiry records the absence of a response.
	default:
		now := in.Now
		o.RespondedAt = &now
	}

	o.Status = e.to
	return o, e.effect, nil
}
