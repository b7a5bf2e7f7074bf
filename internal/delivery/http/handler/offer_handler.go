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

type OfferHandler struct {
	offerService *service.OfferService
}

func NewOfferHandler(offerService *service.OfferService) *OfferHandler {
	return &OfferHandler{offerService: offerService}
}

// @Summary      Create Offer
// @Description  Opens a price negotiation on a listing. Only one active offer per buyer and listing is allowed.
// @Tags         Offers
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      201  {object}  entity.Offer
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /offers [post]
func (h *OfferHandler) CreateOffer(c *gin.Context) {
	buyerID := c.MustGet("user_id").(uuid.UUID)

	var input entity.CreateOfferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "detail": err.Error()})
		return
	}

	listingID, err := uuid.Parse(input.ListingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	amount, err := decimal.NewFromString(input.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	offer, err := h.offerService.CreateOffer(c.Request.Context(), buyerID, listingID, amount, input.Message)
	if err != nil {
		writeOfferError(c, err)
		return
	}

	c.JSON(http.StatusCreated, offer)
}

// @Summary      Manage Offer
// @Description  Applies an action (accept, reject, counter, withdraw, accept_counter) to an existing offer.
// @Tags         Offers
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  entity.Offer
// @Failure      400  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /offers/manage [patch]
func (h *OfferHandler) ManageOffer(c *gin.Context) {
	actorID := c.MustGet("user_id").(uuid.UUID)

	var input entity.ManageOfferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "detail": err.Error()})
		return
	}

	offerID, err := uuid.Parse(input.OfferID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offer id"})
		return
	}

	// Unknown action strings are rejected here, before any state is touched.
	action, err := entity.ParseOfferAction(input.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var counterAmount decimal.NullDecimal
	if input.CounterAmount != "" {
		amount, err := decimal.NewFromString(input.CounterAmount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid counter amount"})
			return
		}
		counterAmount = decimal.NullDecimal{Decimal: amount, Valid: true}
	}

	offer, err := h.offerService.Respond(c.Request.Context(), offerID, actorID, action, counterAmount, input.CounterMessage)
	if err != nil {
		writeOfferError(c, err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// @Summary      List Offers
// @Description  Lists the caller's offers as buyer or seller, newest first.
// @Tags         Offers
// @Produce      json
// @Security     ApiKeyAuth
// @Param        role  query  string  true  "buyer or seller"
// @Success      200  {array}  entity.Offer
// @Failure      400  {object}  map[string]interface{}
// @Router       /offers [get]
func (h *OfferHandler) ListOffers(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	role, err := entity.ParseActorRole(c.Query("role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	offers, err := h.offerService.ListOffers(c.Request.Context(), userID, role)
	if err != nil {
		writeOfferError(c, err)
		return
	}
	if offers == nil {
		offers = []entity.Offer{}
	}

	c.JSON(http.StatusOK, offers)
}

// writeOfferError maps the service error taxonomy onto HTTP statuses. Stale
// state and invalid transitions both land on 409 but keep distinct messages,
// since one signals a race and the other a client bug.
func writeOfferError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOfferNotFound),
		errors.Is(err, service.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrStaleState):
		c.JSON(http.StatusConflict, gin.H{"error": "offer no longer available, refresh and try again"})
	case errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, service.ErrActiveOfferExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}
