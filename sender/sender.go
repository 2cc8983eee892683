package sender

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/farwydi/sferror"
	"github.com/farwydi/sferror/queue/file"
	"github.com/farwydi/sferror/queue/memory"
)

var ErrShutdown = errors.New("sender shutdown")

func NewSender(connect *sql.DB, config ...Config) *Sender {
	// Set default config
	cfg := configDefault(config...)

	logger := cfg.Logger
	if logger == nil {
		logger, _ = sferror.NewStdLogger()
		if logger == nil {
			logger = sferror.NopLogger()
		}
	}

	return &Sender{
		cfg: cfg,
		filePool: NewPool(
			func(model sferror.DataModel) (sferror.Queue, error) {
				return file.NewQueueByModel(model, file.Config{
					Workspace:  cfg.FileWorkspace,
					MaxHistory: cfg.MaxCorruptedFiles,
				})
			},
		),
		memoryPool: NewPool(func(_ sferror.DataModel) (sferror.Queue, error) {
			return memory.NewQueue(), nil
		}),
		stopSig: make(chan bool),
		done:    make(chan struct{}),
		connect: connect,
		logger:  logger,
	}
}

// Sender buffers result rows on disk and publishes them in batches, one
// transaction per insert statement.
type Sender struct {
	cfg Config

	logger sferror.Logger

	filePool   *Pool
	memoryPool *Pool

	stopSig  chan bool
	done     chan struct{}
	connect  *sql.DB
	running  int32
	shutdown int32
	sent     int64
}

// Open registers row kinds whose durable queues may hold rows left over by
// an earlier process.
func (s *Sender) Open(models ...sferror.DataModel) error {
	var err error
	for _, model := range models {
		err = multierr.Append(err, s.filePool.Open(model))
	}
	return err
}

func (s *Sender) Push(model sferror.DataModel) error {
	if atomic.LoadInt32(&s.shutdown) != 0 {
		return ErrShutdown
	}

	err := s.filePool.Push(model)
	if err != nil {
		if s.cfg.UseMemoryFallback {
			s.logger.Warnw("writing to disk failed", "error", err)

			// the memory queue does not return an error
			_ = s.memoryPool.Push(model)
			return nil
		}
		return fmt.Errorf("writing to disk failed: %w", err)
	}
	return nil
}

// Pending is the number of rows not yet published.
func (s *Sender) Pending() int {
	return s.filePool.Len() + s.memoryPool.Len()
}

// Sent is the number of rows published so far.
func (s *Sender) Sent() int64 {
	return atomic.LoadInt64(&s.sent)
}

// Stop ends the pusher. With sendTail every queued row is published before
// returning, otherwise memory rows are moved to disk for the next start.
func (s *Sender) Stop(sendTail bool) error {
	atomic.StoreInt32(&s.shutdown, 1)

	if atomic.LoadInt32(&s.running) == 0 {
		s.tail(context.Background(), sendTail)
		return s.filePool.Close()
	}

	delivered := false
	select {
	case s.stopSig <- sendTail:
		delivered = true
	case <-s.done:
	}
	<-s.done
	if !delivered {
		s.tail(context.Background(), sendTail)
	}
	return s.filePool.Close()
}

func (s *Sender) publish(ctx context.Context, query string, dataModels []sferror.DataModel) (err error) {
	if s.connect == nil {
		return errors.New("sender has no database")
	}

	panicked := true
	tx, err := s.connect.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		// Make sure to rollback when panic, Block error or Commit error
		if panicked || err != nil {
			if err := tx.Rollback(); err != nil {
				s.logger.Errorw("problem when rolling back a transaction", "error", err)
			}
		}
	}()

	err = func() error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}

		for _, dataModel := range dataModels {
			_, err := stmt.ExecContext(ctx, dataModel.ToExec()...)
			if err != nil {
				_ = stmt.Close()
				return err
			}
		}

		return stmt.Close()
	}()

	if err == nil {
		err = tx.Commit()
	}

	panicked = false

	if err == nil {
		atomic.AddInt64(&s.sent, int64(len(dataModels)))
	}

	return err
}

func (s *Sender) fallback(dataModels []sferror.DataModel, memorySafe bool) {
	if err := s.filePool.Append(dataModels); err != nil {
		if memorySafe {
			_ = s.memoryPool.Append(dataModels)
			s.logger.Warnw("error when fallback a write to disk", "error", err)
			return
		}

		s.logger.Errorw("data lost! fatal error when fallback a write to disk",
			"error", err,
			"lost", len(dataModels),
		)
	}
}

func groupBySQL(groups map[string][]sferror.DataModel, order []string, models []sferror.DataModel) []string {
	for _, dataModel := range models {
		query := dataModel.SQL()
		if _, ok := groups[query]; !ok {
			order = append(order, query)
		}
		groups[query] = append(groups[query], dataModel)
	}
	return order
}

// tick publishes one batch of at most limit rows and reports how many rows
// were taken from the queues.
func (s *Sender) tick(ctx context.Context, limit int, memorySafe bool) int {
	extractSize := 0
	safes := map[string][]sferror.DataModel{}
	ejectModels, _ := s.memoryPool.Eject(limit)
	extractSize += len(ejectModels)
	order := groupBySQL(safes, nil, ejectModels)

	extractCount := limit - extractSize
	if limit < 0 || extractCount > 0 {
		if limit < 0 {
			extractCount = -1
		}
		ejectModels, err := s.filePool.Eject(extractCount)
		extractSize += len(ejectModels)
		if err != nil {
			s.logger.Warnw("problem ejecting queue from disk", "error", err)
		}
		order = groupBySQL(safes, order, ejectModels)
	}

	for _, query := range order {
		dataModels := safes[query]
		err := s.publish(ctx, query, dataModels)
		if err != nil {
			s.logger.Warnw("publication ended with an error", "error", err, "count", len(dataModels))
			s.fallback(dataModels, memorySafe)
			continue
		}
		if s.cfg.ShowSuccessfulInfo {
			s.logger.Infow("successfully sent", "count", len(dataModels))
		}
	}

	return extractSize
}

func (s *Sender) tail(ctx context.Context, sendTail bool) {
	if !sendTail {
		ejectModels, _ := s.memoryPool.Eject(-1)
		if len(ejectModels) > 0 {
			if err := s.filePool.Append(ejectModels); err != nil {
				s.logger.Errorw("data lost! fatal error writing to disk when stopping sender",
					"error", err,
					"lost", len(ejectModels),
				)
			}
		}
		return
	}

	before := s.Pending()
	s.tick(ctx, -1, false)
	if left := s.Pending(); left > 0 {
		s.logger.Warnw("rows kept on disk after final publication",
			"pending", left,
			"attempted", before,
		)
	}
}

// RunPusher publishes queued rows every SendInterval until Stop is called or
// ctx is done. Cancelling ctx keeps unsent rows on disk.
func (s *Sender) RunPusher(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}

	t := time.NewTicker(s.cfg.SendInterval)
	go func() {
		defer t.Stop()
		defer close(s.done)
		for {
			select {
			case <-t.C:
				s.tick(ctx, s.cfg.SendLimit, s.cfg.UseMemoryFallback)
			case sendTail := <-s.stopSig:
				s.tail(context.Background(), sendTail)
				return
			case <-ctx.Done():
				atomic.StoreInt32(&s.shutdown, 1)
				s.tail(context.Background(), false)
				return
			}
		}
	}()
}
