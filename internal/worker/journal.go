package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

const (
	writeTimeout = 5 * time.Second
	maxAttempts  = 3
	retryBackoff = 200 * time.Millisecond
)

// JournalPool drains confirmed transfers into the journal.
type JournalPool struct {
	wg sync.WaitGroup
}

// StartJournalPool runs count workers until queue is closed.
func StartJournalPool(count int, queue <-chan domain.TransferRecord, journal port.JournalRepository, logger *zap.Logger) *JournalPool {
	p := &JournalPool{}
	for i := 0; i < count; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			workerLoop(id, queue, journal, logger)
		}(i)
	}
	return p
}

// Wait blocks until the queue is closed and drained.
func (p *JournalPool) Wait() {
	p.wg.Wait()
}

func workerLoop(id int, queue <-chan domain.TransferRecord, journal port.JournalRepository, logger *zap.Logger) {
	for record := range queue {
		var err error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err = journal.Record(ctx, record)
			cancel()
			if err == nil {
				break
			}
			if attempt < maxAttempts {
				time.Sleep(time.Duration(attempt) * retryBackoff)
			}
		}

		if err != nil {
			// The store already holds the transfer; only the journal entry is lost.
			logger.Error("journal write failed",
				zap.Int("worker", id),
				zap.String("transfer_id", record.ID),
				zap.String("warehouse_id", record.WarehouseID),
				zap.String("item_name", record.ItemName),
				zap.Error(err))
			continue
		}
		logger.Debug("journaled transfer", zap.Int("worker", id), zap.String("transfer_id", record.ID))
	}
}
