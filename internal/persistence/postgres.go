package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // Postgres driver

	"blogsmith/internal/config"
)

// PostgresDB implements the Database interface for PostgreSQL.
type PostgresDB struct {
	db        *sql.DB
	posts     PostRepository
	credits   CreditRepository
	schedules ScheduleRepository
}

// psql builds queries with Postgres-style $N placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewPostgresDB creates a new PostgreSQL database connection with pool
// settings taken from configuration.
func NewPostgresDB(cfg config.Database) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgDB := &PostgresDB{db: db}
	pgDB.posts = &postgresPostRepo{db: db}
	pgDB.credits = &postgresCreditRepo{db: db}
	pgDB.schedules = &postgresScheduleRepo{db: db}

	return pgDB, nil
}

func (p *PostgresDB) Posts() PostRepository         { return p.posts }
func (p *PostgresDB) Credits() CreditRepository     { return p.credits }
func (p *PostgresDB) Schedules() ScheduleRepository { return p.schedules }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
