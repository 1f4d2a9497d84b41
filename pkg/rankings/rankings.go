// Package rankings maintains the running per-agent score used by the agent
// ranking projection (supplemental feature, distilled out of the original
// spec but present in the source system's batch report view). It keeps a
// simple running mean per (batch, agent) pair, updated as each task
// finalises, so a ranking can be read at any point during a batch without
// a full table scan.
package rankings

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Tracker persists running per-agent score means.
type Tracker struct {
	DB *sqlx.DB
}

// New builds a Tracker against db.
func New(db *sqlx.DB) *Tracker {
	return &Tracker{DB: db}
}

// CreateSchema creates the agent_scores table if absent.
func (t *Tracker) CreateSchema(ctx context.Context) error {
	_, err := t.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS agent_scores (
	batch_id    VARCHAR(64) NOT NULL,
	agent_id    VARCHAR(64) NOT NULL,
	sample_count BIGINT NOT NULL DEFAULT 0,
	score_mean   DOUBLE NOT NULL DEFAULT 0,
	PRIMARY KEY (batch_id, agent_id)
)`)
	if err != nil {
		return fmt.Errorf("rankings: failed to create schema: %w", err)
	}
	return nil
}

// Upsert folds one more completed task's final score into the agent's
// running mean for the batch. It is safe under concurrent finalisers
// scoring distinct agents, and serialised by the row lock MySQL takes on
// the upsert for the same (batch, agent) pair.
func (t *Tracker) Upsert(ctx context.Context, batchID, agentID string, finalScore float64) error {
	_, err := t.DB.ExecContext(ctx, `
INSERT INTO agent_scores (batch_id, agent_id, sample_count, score_mean)
VALUES (?, ?, 1, ?)
ON DUPLICATE KEY UPDATE
	score_mean = (score_mean * sample_count + ?) / (sample_count + 1),
	sample_count = sample_count + 1`,
		batchID, agentID, finalScore, finalScore)
	if err != nil {
		return fmt.Errorf("rankings: failed to upsert agent score: %w", err)
	}
	return nil
}

// AgentRanking is one agent's position in a batch's leaderboard.
type AgentRanking struct {
	AgentID     string  `db:"agent_id"`
	SampleCount int64   `db:"sample_count"`
	ScoreMean   float64 `db:"score_mean"`
}

// Ranking returns a batch's agents ordered by descending mean score.
func (t *Tracker) Ranking(ctx context.Context, batchID string) ([]AgentRanking, error) {
	var rows []AgentRanking
	err := t.DB.SelectContext(ctx, &rows, `
SELECT agent_id, sample_count, score_mean
FROM agent_scores
WHERE batch_id = ?
ORDER BY score_mean DESC, agent_id ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("rankings: failed to read ranking for batch %q: %w", batchID, err)
	}
	return rows, nil
}
