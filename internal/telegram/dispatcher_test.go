package telegram

import (
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// A single producer feeding fast-draining workers tears queues down and
// rebuilds them constantly; no update may be lost and per-user order must
// hold throughout.
func TestDispatcherDeliversEverythingInOrder(t *testing.T) {
	const keys = 4
	const perKey = 500

	var (
		mu   sync.Mutex
		seen = make(map[int64][]int)
	)
	var wg sync.WaitGroup
	wg.Add(keys * perKey)

	d := newDispatcher(func(u tgbotapi.Update) {
		key := int64(u.UpdateID / 1000000)
		seq := u.UpdateID % 1000000
		mu.Lock()
		seen[key] = append(seen[key], seq)
		mu.Unlock()
		wg.Done()
	})

	for seq := 0; seq < perKey; seq++ {
		for key := int64(0); key < keys; key++ {
			d.Dispatch(key, tgbotapi.Update{UpdateID: int(key)*1000000 + seq})
		}
	}
	wg.Wait()

	for key := int64(0); key < keys; key++ {
		got := seen[key]
		if len(got) != perKey {
			t.Fatalf("key %d: got %d updates, want %d", key, len(got), perKey)
		}
		for i, seq := range got {
			if seq != i {
				t.Fatalf("key %d: update %d arrived at position %d", key, seq, i)
			}
		}
	}
}

func TestDispatcherParallelAcrossUsers(t *testing.T) {
	block := make(chan struct{})
	second := make(chan struct{})

	d := newDispatcher(func(u tgbotapi.Update) {
		if u.UpdateID == 1 {
			<-block
			return
		}
		close(second)
	})

	d.Dispatch(1, tgbotapi.Update{UpdateID: 1})
	d.Dispatch(2, tgbotapi.Update{UpdateID: 2})

	// User 2's update must get through while user 1's worker is stuck.
	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("update for another user blocked behind a busy worker")
	}
	close(block)
}
