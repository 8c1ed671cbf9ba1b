package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"lg/nuvision-api/internal/vision"
)

var addrFlag = flag.String("addr", "", "Listen address (overrides ADDR)")

func main() {
	flag.Parse()
	log.SetPrefix("nuvision-api: ")

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env loaded (%v), using process environment", err)
	}

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	h := &Handler{analyzer: vision.NewClient(cfg.Vision)}

	if cfg.DBURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := getDBPool(ctx, cfg.DBURL)
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		h.db = pool
	} else {
		log.Println("DB_URL not set, saved profile disabled")
	}

	if cfg.TokenHash != "" {
		h.tokenHash = []byte(cfg.TokenHash)
	} else {
		log.Println("API_TOKEN_HASH not set, /api and /mcp are open")
	}

	fmt.Println("Starting gin app...")

	router := gin.Default()
	router.SetTrustedProxies(nil)
	h.registerRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		log.Println("received shutdown signal")
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	// In-flight analyses are bounded by the vision timeout; give them that long.
	grace := cfg.Vision.Timeout
	if grace <= 0 {
		grace = vision.DefaultTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
