package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/grimoire/internal/game/progress"
)

// ProgressRepository persists account progression snapshots. A snapshot is
// written whole: the class and skill rows are replaced in one transaction
// so a crash mid-save never leaves a half-updated account.
type ProgressRepository struct {
	db *pgxpool.Pool
}

// NewProgressRepository creates a ProgressRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewProgressRepository(db *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Save replaces the stored progression state with snap.
//
// Precondition: snap must be non-nil with a non-empty PlayerID.
// Postcondition: The snapshot is fully persisted, or ErrPlayerNotFound if
// no identity row exists for snap.PlayerID.
func (r *ProgressRepository) Save(ctx context.Context, snap *progress.Snapshot) error {
	if snap == nil {
		panic("postgres: Save with nil snapshot")
	}
	if snap.PlayerID == "" {
		panic("postgres: Save with empty player id")
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE players
			 SET mana_current = $2, mana_bonus = $3, health_bonus = $4, updated_at = NOW()
			 WHERE id = $1`,
			snap.PlayerID, snap.ManaCurrent, snap.ManaBonus, snap.HealthBonus,
		)
		if err != nil {
			return fmt.Errorf("updating player stats: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPlayerNotFound
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM player_classes WHERE player_id = $1`, snap.PlayerID,
		); err != nil {
			return fmt.Errorf("clearing classes: %w", err)
		}
		for _, cs := range snap.Classes {
			if _, err := tx.Exec(ctx,
				`INSERT INTO player_classes (player_id, group_id, class_id, level, experience, points)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				snap.PlayerID, cs.Group, cs.ClassID, cs.Level, cs.Experience, cs.Points,
			); err != nil {
				return fmt.Errorf("inserting class %s: %w", cs.ClassID, err)
			}
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM player_skills WHERE player_id = $1`, snap.PlayerID,
		); err != nil {
			return fmt.Errorf("clearing skills: %w", err)
		}
		for _, ss := range snap.Skills {
			if _, err := tx.Exec(ctx,
				`INSERT INTO player_skills (player_id, skill_id, group_id, level, cooldown_ms, slot)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				snap.PlayerID, ss.SkillID, ss.Group, ss.Level, ss.Cooldown.Milliseconds(), ss.Slot,
			); err != nil {
				return fmt.Errorf("inserting skill %s: %w", ss.SkillID, err)
			}
		}
		return nil
	})
}

// Load reads the stored progression state for playerID. A player with no
// saved classes loads as an empty snapshot; callers decide whether that
// means a fresh account.
//
// Precondition: playerID must be non-empty.
// Postcondition: Returns a snapshot with deterministically ordered classes
// and skills, or ErrPlayerNotFound.
func (r *ProgressRepository) Load(ctx context.Context, playerID string) (*progress.Snapshot, error) {
	snap := &progress.Snapshot{
		PlayerID: playerID,
		Classes:  make([]progress.ClassState, 0),
		Skills:   make([]progress.SkillState, 0),
	}

	err := r.db.QueryRow(ctx,
		`SELECT mana_current, mana_bonus, health_bonus FROM players WHERE id = $1`,
		playerID,
	).Scan(&snap.ManaCurrent, &snap.ManaBonus, &snap.HealthBonus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("querying player stats: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT group_id, class_id, level, experience, points
		 FROM player_classes WHERE player_id = $1 ORDER BY group_id`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying classes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cs progress.ClassState
		if err := rows.Scan(&cs.Group, &cs.ClassID, &cs.Level, &cs.Experience, &cs.Points); err != nil {
			return nil, fmt.Errorf("scanning class row: %w", err)
		}
		snap.Classes = append(snap.Classes, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading classes: %w", err)
	}

	skillRows, err := r.db.Query(ctx,
		`SELECT skill_id, group_id, level, cooldown_ms, slot
		 FROM player_skills WHERE player_id = $1 ORDER BY skill_id`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying skills: %w", err)
	}
	defer skillRows.Close()
	for skillRows.Next() {
		var ss progress.SkillState
		var cooldownMS int64
		if err := skillRows.Scan(&ss.SkillID, &ss.Group, &ss.Level, &cooldownMS, &ss.Slot); err != nil {
			return nil, fmt.Errorf("scanning skill row: %w", err)
		}
		ss.Cooldown = time.Duration(cooldownMS) * time.Millisecond
		snap.Skills = append(snap.Skills, ss)
	}
	if err := skillRows.Err(); err != nil {
		return nil, fmt.Errorf("reading skills: %w", err)
	}

	return snap, nil
}
