package main

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"lotteryd/internal/config"
	"lotteryd/internal/handlers"
	"lotteryd/internal/notify"
	"lotteryd/internal/services"
	"lotteryd/internal/store"
)

func main() {
	defer logger.Init("lotteryd", true, false, io.Discard).Close()

	// 1. Load configuration from .env / environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Open the record store
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	// 3. Initialize the ledger service
	ledger := services.NewLedgerService(st, notify.NewLogNotifier(), services.Policy{
		TicketPrice:         cfg.Price(),
		MaxPurchaseQuantity: cfg.MaxPurchaseQuantity,
		CommissionRate:      cfg.Rate(),
		CommissionThreshold: cfg.CommissionThreshold,
	})

	// 4. Set up the Gin router
	httpHandler := handlers.NewHTTPHandler(ledger, cfg.AdminToken)
	r := gin.Default()
	httpHandler.RegisterPublicRoutes(r)

	adminRoutes := r.Group("/admin")
	adminRoutes.Use(httpHandler.AdminMiddleware())
	httpHandler.RegisterAdminRoutes(adminRoutes)

	// 5. Start the background scheduler for the daily draw
	go runDrawScheduler(ledger, cfg.DrawHour, cfg.DrawMinute)

	// 6. Run the server
	logger.Infof("Server starting on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// runDrawScheduler sleeps until the configured clock time each day and
// triggers the draw. RunDailyDraw is idempotent per date, so a restart
// that fires a second invocation for the same day is harmless.
func runDrawScheduler(ledger *services.LedgerService, hour, minute int) {
	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		time.Sleep(time.Until(next))

		result, err := ledger.RunDailyDraw(time.Now().UTC())
		switch {
		case errors.Is(err, services.ErrAlreadyDrawn):
			logger.Infof("Draw already ran for today, skipping")
		case errors.Is(err, services.ErrNoEligibleParticipants):
			logger.Infof("No confirmed tickets today, no draw")
		case err != nil:
			logger.Errorf("Daily draw failed: %v", err)
		default:
			logger.Infof("Daily draw complete: winner=%s", result.WinnerID)
		}
	}
}
