package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS match_results (
	id            BIGSERIAL PRIMARY KEY,
	room_id       TEXT        NOT NULL,
	winner_id     TEXT        NOT NULL,
	winner_name   TEXT        NOT NULL,
	loser_id      TEXT        NOT NULL,
	loser_name    TEXT        NOT NULL,
	winner_rounds INTEGER     NOT NULL,
	loser_rounds  INTEGER     NOT NULL,
	reason        TEXT        NOT NULL,
	rounds        INTEGER     NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL
)`

const insertResult = `
INSERT INTO match_results (
	room_id, winner_id, winner_name, loser_id, loser_name,
	winner_rounds, loser_rounds, reason, rounds, ended_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const queueSize = 128

// Postgres writes results to a match_results table from a background worker.
type Postgres struct {
	pool    *pgxpool.Pool
	queue   chan Result
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPostgres connects, creates the schema if needed and starts the writer.
func NewPostgres(ctx context.Context, url string, maxConns int32, timeout time.Duration, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create match_results table: %w", err)
	}

	p := &Postgres{
		pool:    pool,
		queue:   make(chan Result, queueSize),
		timeout: timeout,
		logger:  logger,
	}
	p.wg.Add(1)
	go p.run()
	return p, nil
}

// Record queues r for writing. When the queue is full the result is dropped and
// logged rather than stalling the caller.
func (p *Postgres) Record(r Result) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- r:
	default:
		p.logger.Warn("match history queue full, dropping result", zap.String("room_id", r.RoomID))
	}
}

// Recent returns the latest limit results, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Result, error) {
	rows, err := p.pool.Query(ctx, `
SELECT room_id, winner_id, winner_name, loser_id, loser_name,
       winner_rounds, loser_rounds, reason, rounds, ended_at
FROM match_results ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query match results: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Result, error) {
		var r Result
		err := row.Scan(&r.RoomID, &r.WinnerID, &r.WinnerName, &r.LoserID, &r.LoserName,
			&r.WinnerRounds, &r.LoserRounds, &r.Reason, &r.Rounds, &r.EndedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan match results: %w", err)
	}
	return results, nil
}

// Close flushes queued results and closes the pool.
func (p *Postgres) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.pool.Close()
}

func (p *Postgres) run() {
	defer p.wg.Done()
	for r := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		_, err := p.pool.Exec(ctx, insertResult,
			r.RoomID, r.WinnerID, r.WinnerName, r.LoserID, r.LoserName,
			r.WinnerRounds, r.LoserRounds, r.Reason, r.Rounds, r.EndedAt)
		cancel()
		if err != nil {
			p.logger.Error("failed to record match result",
				zap.String("room_id", r.RoomID),
				zap.Error(err),
			)
		}
	}
}
