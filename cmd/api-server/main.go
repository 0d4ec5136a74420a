package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bookhub/internal/auth"
	"bookhub/internal/borrow"
	"bookhub/internal/catalog"
	"bookhub/internal/lending"
	"bookhub/internal/notify"
	"bookhub/internal/overdue"
	synchub "bookhub/internal/sync"
	"bookhub/internal/web"
	"bookhub/pkg/database"
	"bookhub/pkg/utils"
)

func main() {
	utils.LoadEnv()

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	srvCfg := utils.LoadServerConfig()
	authCfg := utils.LoadAuthConfig()
	sweepCfg := utils.LoadSweeperConfig()

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := synchub.NewHub()
	router.GET("/ws", synchub.WSHandler(hub))
	tcpSrv := synchub.NewServer(srvCfg.TCPAddr, hub)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Describe()})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
			"events_sent": stats.Sent,
		})
	})

	// Stores and the lifecycle engine
	users := auth.NewService(auth.NewRepo(db))
	books := catalog.NewRepo(db)
	requests := borrow.NewRepo(db)
	lendingSvc := lending.NewService(db, books, requests, hub)

	if authCfg.AdminUsername != "" {
		u, err := users.EnsureSuperuser(context.Background(), authCfg.AdminUsername, authCfg.AdminPassword)
		if err != nil {
			log.Fatalf("bootstrap superuser failed: %v", err)
		}
		log.Printf("superuser %q ready", u.Username)
	}

	// Token API
	apiTokens := auth.TokenService{
		Secret: []byte(authCfg.JWTSecret),
		Issuer: authCfg.JWTIssuer,
		TTL:    authCfg.TokenTTL,
	}
	authHandler := auth.NewHandler(users, apiTokens, lendingSvc)

	// Borrowers who register over UDP get their own events as well.
	udpSrv := notify.NewServer(srvCfg.UDPAddr, authHandler.Auth, nil, nil)
	if err := udpSrv.Listen(); err != nil {
		log.Fatalf("udp notify listen failed: %v", err)
	}
	lendingSvc.Events = lending.Publishers{hub, udpSrv}

	api := router.Group("/api")
	authHandler.RegisterRoutes(api)
	catalog.NewHandler(books, authHandler.Auth).RegisterRoutes(api)
	borrow.NewHandler(requests, books, lendingSvc, authHandler.Auth).RegisterRoutes(api)

	// Session web surface
	sessions := auth.TokenService{
		Secret: []byte(authCfg.JWTSecret),
		Issuer: authCfg.JWTIssuer + "-web",
		TTL:    authCfg.SessionTTL,
	}
	web.NewHandler(users, sessions, books, lendingSvc).RegisterRoutes(router)

	if sweepCfg.InProcess {
		cr, err := overdue.NewSweeper(requests, lendingSvc.Events).Start(sweepCfg.Schedule)
		if err != nil {
			log.Fatalf("overdue sweeper failed: %v", err)
		}
		defer cr.Stop()
	}

	httpSrv := &http.Server{
		Addr:    srvCfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := udpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", srvCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}
	if err := udpSrv.Close(); err != nil {
		log.Printf("udp shutdown error: %v", err)
	}
	hub.CloseAll()

	wg.Wait()
	log.Println("servers stopped")
}
