package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/soyeahso/breakthis/internal/hooks"
)

// Exchange is one completed turn: what the user sent and what the agent
// answered (or the apology, for failed turns).
type Exchange struct {
	ID        int64     `json:"id"`
	DuelID    string    `json:"duelId"`
	Agent     string    `json:"agent"`
	UserText  string    `json:"userText"`
	Reply     string    `json:"reply"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	ElapsedMS int64     `json:"elapsedMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// AgentStats aggregates exchanges for one agent.
type AgentStats struct {
	Agent        string  `json:"agent"`
	Exchanges    int     `json:"exchanges"`
	Delivered    int     `json:"delivered"`
	Failed       int     `json:"failed"`
	AvgElapsedMS float64 `json:"avgElapsedMs"`
}

// Stats summarizes the exchange log.
type Stats struct {
	Duels      int          `json:"duels"`
	Broadcasts int          `json:"broadcasts"`
	Agents     []AgentStats `json:"agents"`
}

// ExchangeLog records completed exchanges and duel lifecycle to SQLite.
type ExchangeLog struct {
	db *DB
}

// NewExchangeLog creates an exchange log using the given database.
func NewExchangeLog(db *DB) *ExchangeLog {
	return &ExchangeLog{db: db}
}

// Record inserts an exchange. CreatedAt defaults to now.
func (l *ExchangeLog) Record(ex Exchange) (int64, error) {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	res, err := l.db.sql.Exec(
		`INSERT INTO exchanges (duel_id, agent, user_text, reply, status, error, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.DuelID, ex.Agent, ex.UserText, ex.Reply, ex.Status, ex.Error, ex.ElapsedMS,
		ex.CreatedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("recording exchange: %w", err)
	}
	return res.LastInsertId()
}

// DuelStarted records a new duel.
func (l *ExchangeLog) DuelStarted(id string) error {
	_, err := l.db.sql.Exec(
		`INSERT INTO duels (id, started_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
		id, time.Now().UTC().Format(time.DateTime),
	)
	return err
}

// DuelEnded marks a duel as ended.
func (l *ExchangeLog) DuelEnded(id string) error {
	_, err := l.db.sql.Exec(
		`UPDATE duels SET ended_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.DateTime), id,
	)
	return err
}

// Broadcast records a broadcast request.
func (l *ExchangeLog) Broadcast(id, duelID, text string) error {
	_, err := l.db.sql.Exec(
		`INSERT INTO broadcasts (id, duel_id, text, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, duelID, text, time.Now().UTC().Format(time.DateTime),
	)
	return err
}

// Recent returns up to limit exchanges, newest first. Limit of 0 defaults to 20.
func (l *ExchangeLog) Recent(limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.sql.Query(
		`SELECT id, duel_id, agent, user_text, reply, status, error, elapsed_ms, created_at
		 FROM exchanges ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExchanges(rows)
}

// ByDuel returns all exchanges of a duel in insertion order.
func (l *ExchangeLog) ByDuel(duelID string) ([]Exchange, error) {
	rows, err := l.db.sql.Query(
		`SELECT id, duel_id, agent, user_text, reply, status, error, elapsed_ms, created_at
		 FROM exchanges WHERE duel_id = ? ORDER BY id`, duelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExchanges(rows)
}

// Stats aggregates the log per agent.
func (l *ExchangeLog) Stats() (Stats, error) {
	var st Stats
	if err := l.db.sql.QueryRow(`SELECT COUNT(*) FROM duels`).Scan(&st.Duels); err != nil {
		return st, fmt.Errorf("counting duels: %w", err)
	}
	if err := l.db.sql.QueryRow(`SELECT COUNT(*) FROM broadcasts`).Scan(&st.Broadcasts); err != nil {
		return st, fmt.Errorf("counting broadcasts: %w", err)
	}

	rows, err := l.db.sql.Query(
		`SELECT agent,
		        COUNT(*),
		        SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		        AVG(elapsed_ms)
		 FROM exchanges GROUP BY agent ORDER BY agent`,
	)
	if err != nil {
		return st, fmt.Errorf("aggregating exchanges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a AgentStats
		if err := rows.Scan(&a.Agent, &a.Exchanges, &a.Delivered, &a.Failed, &a.AvgElapsedMS); err != nil {
			return st, err
		}
		st.Agents = append(st.Agents, a)
	}
	return st, rows.Err()
}

// RegisterHooks subscribes the log to duel lifecycle, broadcast and turn events.
func (l *ExchangeLog) RegisterHooks(m *hooks.Manager) {
	m.On(hooks.EventTurnCompleted, "exchange-log", func(_ context.Context, p hooks.Payload) error {
		_, err := l.Record(Exchange{
			DuelID:    p.DuelID,
			Agent:     p.Agent,
			UserText:  p.String("user"),
			Reply:     p.String("reply"),
			Status:    p.String("status"),
			Error:     p.String("error"),
			ElapsedMS: p.Int64("elapsed"),
		})
		return err
	})
	m.On(hooks.EventDuelStart, "exchange-log", func(_ context.Context, p hooks.Payload) error {
		return l.DuelStarted(p.DuelID)
	})
	m.On(hooks.EventDuelEnd, "exchange-log", func(_ context.Context, p hooks.Payload) error {
		return l.DuelEnded(p.DuelID)
	})
	m.On(hooks.EventBroadcast, "exchange-log", func(_ context.Context, p hooks.Payload) error {
		return l.Broadcast(p.String("requestId"), p.DuelID, p.String("text"))
	})
}

func scanExchanges(rows *sql.Rows) ([]Exchange, error) {
	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var createdAt string
		if err := rows.Scan(
			&ex.ID, &ex.DuelID, &ex.Agent, &ex.UserText, &ex.Reply,
			&ex.Status, &ex.Error, &ex.ElapsedMS, &createdAt,
		); err != nil {
			return nil, err
		}
		ex.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		out = append(out, ex)
	}
	return out, rows.Err()
}
