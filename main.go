package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"parts-market/internal/config"
	"parts-market/internal/delivery/http/middleware"
	"parts-market/internal/delivery/http/route"
	service "parts-market/internal/service/postgresql"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// @title        Parts Market API
// @version      1.0
// @description  Peer-to-peer parts marketplace with offer negotiation.
// @BasePath     /api
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] .env file not found, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[ERROR] failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[ERROR] failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("[ERROR] database unreachable: %v", err)
	}

	mongoCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoURI))
	cancel()
	if err != nil {
		log.Fatalf("[ERROR] failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Printf("[WARN] failed to disconnect MongoDB: %v", err)
		}
	}()

	app := gin.New()
	app.Use(gin.Recovery(), middleware.RequestLogger())

	offerService := route.SetupRoute(app, db, mongoClient, cfg)

	sweeper := service.NewOfferSweeper(offerService, cfg.SweepInterval)
	go sweeper.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: app,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[INFO] listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[ERROR] server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[INFO] shutting down")

	sweeper.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] forced shutdown: %v", err)
	}
}
