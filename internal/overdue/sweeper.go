// Package overdue flags borrow requests whose due date has passed. The flag
// is informational; the request keeps its status.
package overdue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"bookhub/internal/sync"
	"bookhub/pkg/models"
)

type Store interface {
	MarkOverdue(ctx context.Context, now time.Time) ([]models.BorrowRequest, error)
}

type Publisher interface {
	BroadcastJSON(v any)
}

type Sweeper struct {
	Store   Store
	Events  Publisher
	Now     func() time.Time
	Timeout time.Duration
}

func NewSweeper(store Store, events Publisher) *Sweeper {
	return &Sweeper{
		Store:   store,
		Events:  events,
		Now:     time.Now,
		Timeout: 4 * time.Minute,
	}
}

// RunOnce marks every overdue request and returns how many were flagged.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.Now().UTC()
	flagged, err := s.Store.MarkOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}

	if s.Events != nil {
		for _, br := range flagged {
			s.Events.BroadcastJSON(sync.BorrowEvent{
				Type:       "borrow.overdue",
				RequestID:  br.ID,
				BookID:     br.BookID,
				BorrowerID: br.BorrowerID,
				Status:     br.Status.String(),
				Available:  false,
				Overdue:    true,
				At:         now,
			})
		}
	}
	return len(flagged), nil
}

// Start schedules RunOnce with a cron spec ("@every 1h", "0 * * * *"). The
// caller stops the returned cron.
func (s *Sweeper) Start(schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()

		n, err := s.RunOnce(ctx)
		if err != nil {
			log.Printf("[overdue] sweep failed: %v", err)
			return
		}
		log.Printf("[overdue] sweep flagged %d request(s)", n)
	})
	if err != nil {
		return nil, fmt.Errorf("add overdue schedule %q: %w", schedule, err)
	}

	log.Printf("[overdue] started schedule=%q", schedule)
	c.Start()
	return c, nil
}
