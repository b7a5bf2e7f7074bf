package repository

import (
	"context"
	"database/sql"
	"errors"

	entity "parts-market/internal/domain"

	"github.com/google/uuid"
)

type listingRepository struct {
	db *sql.DB
}

type ListingRepository interface {
	CreateListing(ctx context.Context, listing *entity.Listing) error
	GetListingByID(ctx context.Context, listingID uuid.UUID) (*entity.Listing, error)
	GetListingsBySellerID(ctx context.Context, sellerID uuid.UUID) ([]entity.Listing, error)
	// UpdateListingStatus only succeeds when the listing is still in the
	// expected status, mirroring the offer store's conditional discipline.
	UpdateListingStatus(ctx context.Context, listingID uuid.UUID, expected, next entity.ListingStatus) (bool, error)
}

func NewListingRepository(db *sql.DB) ListingRepository {
	return &listingRepository{db: db}
}

const listingColumns = `id, seller_id, title, description, price, currency, status, created_at, updated_at`

func (r *listingRepository) CreateListing(ctx context.Context, listing *entity.Listing) error {
	query := `
        INSERT INTO listings (id, seller_id, title, description, price, currency, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
    `
	_, err := r.db.ExecContext(ctx, query,
		listing.ID, listing.SellerID, listing.Title, listing.Description,
		listing.Price, listing.Currency, listing.Status,
	)
	return err
}

func (r *listingRepository) GetListingByID(ctx context.Context, listingID uuid.UUID) (*entity.Listing, error) {
	var listing entity.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, listingID).Scan(
		&listing.ID, &listing.SellerID, &listing.Title, &listing.Description,
		&listing.Price, &listing.Currency, &listing.Status,
		&listing.CreatedAt, &listing.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) GetListingsBySellerID(ctx context.Context, sellerID uuid.UUID) ([]entity.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE seller_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []entity.Listing
	for rows.Next() {
		var listing entity.Listing
		err := rows.Scan(
			&listing.ID, &listing.SellerID, &listing.Title, &listing.Description,
			&listing.Price, &listing.Currency, &listing.Status,
			&listing.CreatedAt, &listing.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

func (r *listingRepository) UpdateListingStatus(ctx context.Context, listingID uuid.UUID, expected, next entity.ListingStatus) (bool, error) {
	query := `UPDATE listings SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	res, err := r.db.ExecContext(ctx, query, next, listingID, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
