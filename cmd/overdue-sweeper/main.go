package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookhub/internal/borrow"
	"bookhub/internal/overdue"
	"bookhub/pkg/database"
	"bookhub/pkg/utils"
)

func main() {
	utils.LoadEnv()
	sweepCfg := utils.LoadSweeperConfig()

	var (
		once     = flag.Bool("once", false, "run a single sweep and exit")
		schedule = flag.String("schedule", sweepCfg.Schedule, "cron schedule for repeated sweeps")
	)
	flag.Parse()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	sweeper := overdue.NewSweeper(borrow.NewRepo(db), nil)

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), sweeper.Timeout)
		defer cancel()

		n, err := sweeper.RunOnce(ctx)
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		log.Printf("[overdue] flagged %d request(s) at %s", n, time.Now().UTC().Format(time.RFC3339))
		return
	}

	c, err := sweeper.Start(*schedule)
	if err != nil {
		log.Fatalf("start sweeper: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("shutdown signal received: %s", sig)

	<-c.Stop().Done()
	log.Println("sweeper stopped")
}
