package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	entity "parts-market/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uq_offers_active_pair is a partial unique index on (listing_id, buyer_id)
// WHERE status IN ('pending','countered'). It closes the create race the
// service-level pre-check cannot.
const activePairConstraint = "uq_offers_active_pair"

var ErrActiveOfferConflict = errors.New("an active offer already exists for this listing and buyer")

type offerRepository struct {
	db *sql.DB
}

type OfferRepository interface {
	CreateOffer(ctx context.Context, offer *entity.Offer) error
	GetOfferByID(ctx context.Context, offerID uuid.UUID) (*entity.Offer, error)
	GetOffersByBuyerID(ctx context.Context, buyerID uuid.UUID) ([]entity.Offer, error)
	GetOffersBySellerID(ctx context.Context, sellerID uuid.UUID) ([]entity.Offer, error)
	// UpdateOfferStatus is the sole write path for existing offers: a
	// conditional update keyed on the previously read status. It returns
	// false when no row matched, meaning another actor won the race.
	UpdateOfferStatus(ctx context.Context, offerID uuid.UUID, expected entity.OfferStatus, next *entity.Offer) (bool, error)
	GetExpiredActiveOffers(ctx context.Context, now time.Time, limit int) ([]entity.Offer, error)
	CountActiveOffersByBuyer(ctx context.Context, buyerID uuid.UUID) (int, error)
	HasActiveOffer(ctx context.Context, listingID, buyerID uuid.UUID) (bool, error)
}

func NewOfferRepository(db *sql.DB) OfferRepository {
	return &offerRepository{db: db}
}

const offerColumns = `id, listing_id, buyer_id, seller_id, amount, currency, message, status,
       counter_amount, counter_message, created_at, expires_at, responded_at`

func (r *offerRepository) CreateOffer(ctx context.Context, offer *entity.Offer) error {
	query := `
        INSERT INTO offers (id, listing_id, buyer_id, seller_id, amount, currency, message, status, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.db.ExecContext(ctx, query,
		offer.ID, offer.ListingID, offer.BuyerID, offer.SellerID,
		offer.Amount, offer.Currency, offer.Message, offer.Status,
		offer.CreatedAt, offer.ExpiresAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && pqErr.Constraint == activePairConstraint {
		return ErrActiveOfferConflict
	}
	return err
}

func (r *offerRepository) GetOfferByID(ctx context.Context, offerID uuid.UUID) (*entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	offer, err := scanOffer(r.db.QueryRowContext(ctx, query, offerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (r *offerRepository) GetOffersByBuyerID(ctx context.Context, buyerID uuid.UUID) ([]entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE buyer_id = $1 ORDER BY created_at DESC`
	return r.queryOffers(ctx, query, buyerID)
}

func (r *offerRepository) GetOffersBySellerID(ctx context.Context, sellerID uuid.UUID) ([]entity.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE seller_id = $1 ORDER BY created_at DESC`
	return r.queryOffers(ctx, query, sellerID)
}

func (r *offerRepository) UpdateOfferStatus(ctx context.Context, offerID uuid.UUID, expected entity.OfferStatus, next *entity.Offer) (bool, error) {
	query := `
        UPDATE offers
        SET status=$1, counter_amount=$2, counter_message=$3, expires_at=$4, responded_at=$5
        WHERE id=$6 AND status=$7
    `
	res, err := r.db.ExecContext(ctx, query,
		next.Status, next.CounterAmount, nullString(next.CounterMessage),
		next.ExpiresAt, nullTime(next.RespondedAt),
		offerID, expected,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *offerRepository) GetExpiredActiveOffers(ctx context.Context, now time.Time, limit int) ([]entity.Offer, error) {
	query := `
        SELECT ` + offerColumns + `
        FROM offers
        WHERE status IN ('pending', 'countered') AND expires_at <= $1
        ORDER BY expires_at
        LIMIT $2
    `
	return r.queryOffers(ctx, query, now, limit)
}

func (r *offerRepository) CountActiveOffersByBuyer(ctx context.Context, buyerID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM offers WHERE buyer_id = $1 AND status IN ('pending', 'countered')`
	var count int
	err := r.db.QueryRowContext(ctx, query, buyerID).Scan(&count)
	return count, err
}

func (r *offerRepository) HasActiveOffer(ctx context.Context, listingID, buyerID uuid.UUID) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM offers
            WHERE listing_id = $1 AND buyer_id = $2 AND status IN ('pending', 'countered')
        )
    `
	var exists bool
	err := r.db.QueryRowContext(ctx, query, listingID, buyerID).Scan(&exists)
	return exists, err
}

func (r *offerRepository) queryOffers(ctx context.Context, query string, args ...any) ([]entity.Offer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []entity.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *offer)
	}
	return offers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*entity.Offer, error) {
	var (
		offer          entity.Offer
		counterMessage sql.NullString
		respondedAt    sql.NullTime
	)
	err := row.Scan(
		&offer.ID, &offer.ListingID, &offer.BuyerID, &offer.SellerID,
		&offer.Amount, &offer.Currency, &offer.Message, &offer.Status,
		&offer.CounterAmount, &counterMessage,
		&offer.CreatedAt, &offer.ExpiresAt, &respondedAt,
	)
	if err != nil {
		return nil, err
	}
	offer.CounterMessage = counterMessage.String
	if respondedAt.Valid {
		t := respondedAt.Time
		offer.RespondedAt = &t
	}
	return &offer, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
