package poller

import (
	"sync"
	"time"

	"livechart/internal/interfaces"
)

var _ interfaces.Scheduler = TickerScheduler{}

// TickerScheduler runs each task on its own goroutine driven by a
// time.Ticker. Ticks missed while fn is running are dropped by the ticker,
// so a slow refresh never causes a burst of catch-up calls.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) interfaces.Handle {
	h := &tickerHandle{done: make(chan struct{})}
	go func() {
		fn()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-t.C:
				select {
				case <-h.done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return h
}

type tickerHandle struct {
	once sync.Once
	done chan struct{}
}

func (h *tickerHandle) Cancel() {
	h.once.Do(func() { close(h.done) })
}
