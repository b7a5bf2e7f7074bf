package handler

import (
	"errors"
	"net/http"

	entity "parts-market/internal/domain"
	service "parts-market/internal/service/postgresql"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ListingHandler struct {
	listingService *service.ListingService
}

func NewListingHandler(listingService *service.ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// @Summary      Create Listing
// @Tags         Listings
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      201  {object}  entity.Listing
// @Failure      400  {object}  map[string]interface{}
// @Router       /listings [post]
func (h *ListingHandler) CreateListing(c *gin.Context) {
	sellerID := c.MustGet("user_id").(uuid.UUID)

	var input entity.CreateListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "detail": err.Error()})
		return
	}

	price, err := decimal.NewFromString(input.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), sellerID, input.Title, input.Description, price, input.Currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// @Summary      Get Listing
// @Tags         Listings
// @Produce      json
// @Success      200  {object}  entity.Listing
// @Failure      404  {object}  map[string]interface{}
// @Router       /listings/{id} [get]
func (h *ListingHandler) GetListing(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	listing, err := h.listingService.GetListing(c.Request.Context(), listingID)
	if err != nil {
		if errors.Is(err, service.ErrListingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listing)
}

// @Summary      My Listings
// @Tags         Listings
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {array}  entity.Listing
// @Router       /listings/my [get]
func (h *ListingHandler) GetMyListings(c *gin.Context) {
	sellerID := c.MustGet("user_id").(uuid.UUID)

	listings, err := h.listingService.GetMyListings(c.Request.Context(), sellerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if listings == nil {
		listings = []entity.Listing{}
	}

	c.JSON(http.StatusOK, listings)
}
