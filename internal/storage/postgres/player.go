package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Player represents a player identity in the database. Progression state
// lives in its own tables; see ProgressRepository.
type Player struct {
	ID           string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// ErrPlayerNotFound is returned when a player lookup yields no results.
var ErrPlayerNotFound = errors.New("player not found")

// ErrPlayerExists is returned when attempting to create a duplicate name.
var ErrPlayerExists = errors.New("player already exists")

// ErrInvalidCredentials is returned when authentication fails.
var ErrInvalidCredentials = errors.New("invalid credentials")

// PlayerRepository provides player identity persistence operations.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Create inserts a new player with a generated uuid and a bcrypt-hashed
// password.
//
// Precondition: name and password must be non-empty.
// Postcondition: Returns the created Player with ID and CreatedAt set,
// or ErrPlayerExists if the name is taken.
func (r *PlayerRepository) Create(ctx context.Context, name, password string) (Player, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return Player{}, fmt.Errorf("hashing password: %w", err)
	}

	var p Player
	err = r.db.QueryRow(ctx,
		`INSERT INTO players (id, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, password_hash, created_at`,
		uuid.New().String(), name, hash,
	).Scan(&p.ID, &p.Name, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return Player{}, ErrPlayerExists
		}
		return Player{}, fmt.Errorf("inserting player: %w", err)
	}

	return p, nil
}

// Authenticate verifies credentials and returns the matching player.
//
// Precondition: name and password must be non-empty.
// Postcondition: Returns the Player if credentials are valid,
// ErrPlayerNotFound if the name doesn't exist,
// or ErrInvalidCredentials if the password is wrong.
func (r *PlayerRepository) Authenticate(ctx context.Context, name, password string) (Player, error) {
	p, err := r.GetByName(ctx, name)
	if err != nil {
		return Player{}, err
	}
	if !CheckPassword(password, p.PasswordHash) {
		return Player{}, ErrInvalidCredentials
	}
	return p, nil
}

// GetByName retrieves a player by name.
//
// Precondition: name must be non-empty.
// Postcondition: Returns the Player or ErrPlayerNotFound.
func (r *PlayerRepository) GetByName(ctx context.Context, name string) (Player, error) {
	var p Player
	err := r.db.QueryRow(ctx,
		`SELECT id, name, password_hash, created_at
		 FROM players WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.PasswordHash, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Player{}, ErrPlayerNotFound
		}
		return Player{}, fmt.Errorf("querying player: %w", err)
	}
	return p, nil
}

// Grant gives the player the named permission. Granting an already-held
// permission is a no-op.
//
// Precondition: permission must be non-empty.
// Postcondition: The permission is held, or ErrPlayerNotFound is returned.
func (r *PlayerRepository) Grant(ctx context.Context, playerID, permission string) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO player_permissions (player_id, permission)
		 SELECT id, $2 FROM players WHERE id = $1
		 ON CONFLICT DO NOTHING`,
		playerID, permission,
	)
	if err != nil {
		return fmt.Errorf("granting permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the player is missing or the grant already existed;
		// disambiguate so callers get a real not-found.
		held, err := r.HasPermission(ctx, playerID, permission)
		if err != nil {
			return err
		}
		if !held {
			return ErrPlayerNotFound
		}
	}
	return nil
}

// Revoke removes the named permission. Revoking a permission the player
// does not hold is a no-op.
func (r *PlayerRepository) Revoke(ctx context.Context, playerID, permission string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM player_permissions WHERE player_id = $1 AND permission = $2`,
		playerID, permission,
	)
	if err != nil {
		return fmt.Errorf("revoking permission: %w", err)
	}
	return nil
}

// HasPermission reports whether the player holds the named permission.
func (r *PlayerRepository) HasPermission(ctx context.Context, playerID, permission string) (bool, error) {
	var held bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM player_permissions WHERE player_id = $1 AND permission = $2
		 )`,
		playerID, permission,
	).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("checking permission: %w", err)
	}
	return held, nil
}

// Permissions returns all permissions held by the player, sorted.
func (r *PlayerRepository) Permissions(ctx context.Context, playerID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT permission FROM player_permissions
		 WHERE player_id = $1 ORDER BY permission`,
		playerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning permission row: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
