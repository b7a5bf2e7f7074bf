package service

import (
	"context"
	"errors"

	entity "parts-market/internal/domain"
	repo "parts-market/internal/repository/postgresql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice    = errors.New("listing price must be positive")
	ErrInvalidCurrency = errors.New("currency must be a three-letter code")
)

type ListingService struct {
	listingRepo repo.ListingRepository
}

func NewListingService(listingRepo repo.ListingRepository) *ListingService {
	return &ListingService{listingRepo: listingRepo}
}

func (s *ListingService) CreateListing(ctx context.Context, sellerID uuid.UUID, title, description string, price decimal.Decimal, currency string) (*entity.Listing, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	listing := &entity.Listing{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       title,
		Description: description,
		Price:       price,
		Currency:    currency,
		Status:      entity.ListingStatusActive,
	}
	if err := s.listingRepo.CreateListing(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *ListingService) GetListing(ctx context.Context, listingID uuid.UUID) (*entity.Listing, error) {
	listing, err := s.listingRepo.GetListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

func (s *ListingService) GetMyListings(ctx context.Context, sellerID uuid.UUID) ([]entity.Listing, error) {
	return s.listingRepo.GetListingsBySellerID(ctx, sellerID)
}
