package route

import (
	"database/sql"

	"parts-market/internal/config"
	httpHandler "parts-market/internal/delivery/http/handler"
	"parts-market/internal/delivery/http/middleware"
	mongorepo "parts-market/internal/repository/mongodb"
	repo "parts-market/internal/repository/postgresql"
	service "parts-market/internal/service/postgresql"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "parts-market/docs"
)

// SetupRoute wires repositories, services and handlers onto the engine. The
// offer service is returned so main can attach the expiry sweeper to it.
func SetupRoute(app *gin.Engine, db *sql.DB, mongoClient *mongo.Client, cfg *config.Config) *service.OfferService {
	// --- REPOSITORIES ---
	userRepo := repo.NewUserRepository(db)
	listingRepo := repo.NewListingRepository(db)
	offerRepo := repo.NewOfferRepository(db)
	logRepo := mongorepo.NewLogRepository(mongoClient)

	// --- SERVICES ---
	authService := service.NewAuthService(userRepo)
	listingService := service.NewListingService(listingRepo)
	offerService := service.NewOfferService(offerRepo, listingRepo, logRepo,
		cfg.OfferTTL, cfg.MaxActiveOffersPerBuyer)

	// --- HANDLERS ---
	authHandler := httpHandler.NewAuthHandler(authService)
	listingHandler := httpHandler.NewListingHandler(listingService)
	offerHandler := httpHandler.NewOfferHandler(offerService)

	api := app.Group("/api")

	app.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL("/swagger/doc.json"),
		ginSwagger.DefaultModelsExpandDepth(0),
	))

	// --- Authentication & Profile ---
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/profile", middleware.AuthRequired(), authHandler.Profile)

	// --- Listings ---
	listings := api.Group("/listings")
	listings.GET("/:id", listingHandler.GetListing)
	listings.POST("", middleware.AuthRequired(), listingHandler.CreateListing)
	listings.GET("/my", middleware.AuthRequired(), listingHandler.GetMyListings)

	// --- Offer negotiation ---
	offers := api.Group("/offers", middleware.AuthRequired())
	offers.POST("", offerHandler.CreateOffer)
	offers.PATCH("/manage", offerHandler.ManageOffer)
	offers.GET("", offerHandler.ListOffers)

	return offerService
}
