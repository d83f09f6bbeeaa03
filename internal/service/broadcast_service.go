package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/domain"
)

type BroadcastStore interface {
	CreateBroadcast(ctx context.Context, b *domain.Broadcast) error
	GetBroadcastByID(ctx context.Context, id int64) (*domain.Broadcast, error)
	GetRunningBroadcast(ctx context.Context) (*domain.Broadcast, error)
	GetAllBroadcasts(ctx context.Context) ([]*domain.Broadcast, error)
	StartBroadcast(ctx context.Context, id int64, totalUsers int) error
	UpdateBroadcastStatus(ctx context.Context, id int64, status domain.BroadcastStatus) error
	UpdateBroadcastProgress(ctx context.Context, id int64, sent, failed int, lastUserID int64) error
	CompleteBroadcast(ctx context.Context, id int64) error
	GetTotalUsersCount(ctx context.Context) (int, error)
	GetUsersForBroadcast(ctx context.Context, lastUserID int64, limit int) ([]int64, int64, error)
}

// BroadcastService sends an admin announcement to every user in batches.
// At most one broadcast runs at a time; a paused one resumes from the
// last persisted user cursor.
type BroadcastService struct {
	repo      BroadcastStore
	send      func(telegramID int64, text string) error
	mu        sync.Mutex
	isRunning bool
	stopChan  chan struct{}
}

func NewBroadcastService(repo BroadcastStore) *BroadcastService {
	return &BroadcastService{
		repo:     repo,
		stopChan: make(chan struct{}),
	}
}

func (s *BroadcastService) SetSendFunc(fn func(telegramID int64, text string) error) {
	s.send = fn
}

// CreateBroadcast stores a new draft and returns it ready to start.
func (s *BroadcastService) CreateBroadcast(ctx context.Context, name, text string) (*domain.Broadcast, error) {
	b := &domain.Broadcast{
		Name:   name,
		Text:   text,
		Status: domain.BroadcastDraft,
	}
	if err := s.repo.CreateBroadcast(ctx, b); err != nil {
		return nil, fmt.Errorf("create broadcast: %w", err)
	}
	return b, nil
}

func (s *BroadcastService) StartBroadcast(ctx context.Context, broadcastID int64) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("рассылка уже запущена")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.runBroadcast(ctx, broadcastID)
	return nil
}

func (s *BroadcastService) StopBroadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
}

func (s *BroadcastService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *BroadcastService) runBroadcast(ctx context.Context, broadcastID int64) {
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	broadcast, err := s.repo.GetBroadcastByID(ctx, broadcastID)
	if err != nil {
		log.Printf("Broadcast error: %v", err)
		return
	}

	totalUsers, _ := s.repo.GetTotalUsersCount(ctx)
	s.repo.StartBroadcast(ctx, broadcastID, totalUsers)

	lastUserID := broadcast.LastUserID
	sentCount := broadcast.SentCount
	failedCount := broadcast.FailedCount
	batchSize := 25

	for {
		select {
		case <-s.stopChan:
			s.repo.UpdateBroadcastStatus(ctx, broadcastID, domain.BroadcastPaused)
			log.Printf("Broadcast %d paused at user %d", broadcastID, lastUserID)
			return
		default:
		}

		userIDs, maxID, err := s.repo.GetUsersForBroadcast(ctx, lastUserID, batchSize)
		if err != nil {
			log.Printf("Error getting users: %v", err)
			time.Sleep(time.Second)
			continue
		}

		if len(userIDs) == 0 {
			s.repo.CompleteBroadcast(ctx, broadcastID)
			log.Printf("Broadcast %d completed: sent=%d, failed=%d", broadcastID, sentCount, failedCount)
			return
		}

		for _, telegramID := range userIDs {
			if err := s.send(telegramID, broadcast.Text); err != nil {
				failedCount++
				log.Printf("Failed to send to %d: %v", telegramID, err)
			} else {
				sentCount++
			}
			// Stay well under the Bot API flood limit.
			time.Sleep(40 * time.Millisecond)
		}

		lastUserID = maxID
		s.repo.UpdateBroadcastProgress(ctx, broadcastID, sentCount, failedCount, lastUserID)
	}
}

// ResumeBroadcast picks up the running or most recent paused broadcast.
func (s *BroadcastService) ResumeBroadcast(ctx context.Context) error {
	broadcast, err := s.repo.GetRunningBroadcast(ctx)
	if err != nil {
		broadcasts, _ := s.repo.GetAllBroadcasts(ctx)
		for _, b := range broadcasts {
			if b.Status == domain.BroadcastPaused {
				broadcast = b
				break
			}
		}
	}

	if broadcast == nil {
		return fmt.Errorf("нет рассылки для продолжения")
	}

	return s.StartBroadcast(ctx, broadcast.ID)
}
