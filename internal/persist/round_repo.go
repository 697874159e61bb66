package persist

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arenasim/simcore/internal/arena"
	"github.com/google/uuid"
)

// GroupTotals aggregates one group's frame stats over a round.
type GroupTotals struct {
	Name    string
	Deaths  int
	Damaged int
	Spawned int
}

// RoundSummary is the aggregate record of one round. Only totals are kept,
// never entity state.
type RoundSummary struct {
	ID         uuid.UUID
	Seed       uint32
	Round      int
	Frames     int
	Kills      int
	Pickups    int
	PeakActive int
	Dropped    int64
	StartedAt  time.Time
	EndedAt    time.Time
	Groups     map[string]*GroupTotals
}

// NewRoundSummary starts a summary with a fresh id.
func NewRoundSummary(seed uint32, round int, start time.Time) *RoundSummary {
	return &RoundSummary{
		ID:        uuid.New(),
		Seed:      seed,
		Round:     round,
		StartedAt: start,
		Groups:    make(map[string]*GroupTotals),
	}
}

// Observe folds one frame into the summary.
func (s *RoundSummary) Observe(st arena.FrameStats) {
	s.Frames++
	s.Kills += st.Kills
	s.Dropped += int64(st.Dropped)
	active := 0
	for _, g := range st.Groups {
		active += g.Active
		s.Pickups += g.Collected
		t := s.Groups[g.Name]
		if t == nil {
			t = &GroupTotals{Name: g.Name}
			s.Groups[g.Name] = t
		}
		t.Deaths += g.Deaths
		t.Damaged += g.Damaged
		t.Spawned += g.Spawned
	}
	s.PeakActive = max(s.PeakActive, active)
}

// Finish stamps the end time.
func (s *RoundSummary) Finish(end time.Time) { s.EndedAt = end }

func (s *RoundSummary) Duration() time.Duration { return s.EndedAt.Sub(s.StartedAt) }

// sortedGroups returns the group totals ordered by name.
func (s *RoundSummary) sortedGroups() []*GroupTotals {
	out := make([]*GroupTotals, 0, len(s.Groups))
	for _, g := range s.Groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type RoundRepo struct {
	db *DB
}

func NewRoundRepo(db *DB) *RoundRepo {
	return &RoundRepo{db: db}
}

// Record writes a round and its group totals in a single transaction.
func (r *RoundRepo) Record(ctx context.Context, s *RoundSummary) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("round begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO rounds (id, seed, round_no, frames, kills, pickups, peak_active, dropped, duration_ms, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, int64(s.Seed), s.Round, s.Frames, s.Kills, s.Pickups, s.PeakActive, s.Dropped,
		s.Duration().Milliseconds(), s.StartedAt, s.EndedAt,
	); err != nil {
		return fmt.Errorf("round insert: %w", err)
	}

	for _, g := range s.sortedGroups() {
		if _, err := tx.Exec(ctx,
			`INSERT INTO round_groups (round_id, name, deaths, damaged, spawned)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.ID, g.Name, g.Deaths, g.Damaged, g.Spawned,
		); err != nil {
			return fmt.Errorf("round group insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// BestKills returns the highest kill count recorded for a seed, 0 if none.
func (r *RoundRepo) BestKills(ctx context.Context, seed uint32) (int, error) {
	var best int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(kills), 0) FROM rounds WHERE seed = $1`, int64(seed),
	).Scan(&best)
	return best, err
}
