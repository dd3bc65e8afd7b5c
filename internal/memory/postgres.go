package memory

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"prdigest/server/internal/agent"
)

// Postgres stores threads in PostgreSQL through gorm on top of a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	db     *gorm.DB
	logger *zap.Logger
}

// OpenPostgres connects to dsn, pings the database and migrates the
// threads and messages tables.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse pool config")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "open pool")
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping pool")
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "open gorm")
	}
	if err := db.WithContext(connectCtx).AutoMigrate(&Thread{}, &Message{}); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	logger.Named("memory").Info("postgres memory ready", zap.String("database", poolCfg.ConnConfig.Database))
	return &Postgres{pool: pool, db: db, logger: logger.Named("memory")}, nil
}

// History returns up to limit of the newest messages of a thread in
// chronological order.
func (s *Postgres) History(ctx context.Context, thread agent.Thread, limit int) ([]agent.Message, error) {
	var stored Thread
	err := s.db.WithContext(ctx).First(&stored, "id = ?", thread.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load thread")
	}
	if err := agent.CheckOwner(stored.toAgent(), thread); err != nil {
		return nil, err
	}

	var rows []Message
	q := s.db.WithContext(ctx).Where("thread_id = ?", thread.ID).Order("position DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "load messages")
	}
	slices.Reverse(rows)

	out := make([]agent.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toAgent())
	}
	return out, nil
}

// Append adds the user and assistant text messages of msgs to a thread,
// creating the thread on first use.
func (s *Postgres) Append(ctx context.Context, thread agent.Thread, msgs ...agent.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := Thread{ID: thread.ID, ResourceID: thread.ResourceID, Persona: thread.Persona}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return errors.Wrap(err, "create thread")
		}
		// serialize appends to the same thread
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", thread.ID).Error; err != nil {
			return errors.Wrap(err, "lock thread")
		}
		if err := agent.CheckOwner(row.toAgent(), thread); err != nil {
			return err
		}

		var last int
		if err := tx.Model(&Message{}).
			Where("thread_id = ?", thread.ID).
			Select("COALESCE(MAX(position), -1)").
			Scan(&last).Error; err != nil {
			return errors.Wrap(err, "last position")
		}

		var rows []Message
		for _, m := range msgs {
			if !storable(m) {
				continue
			}
			last++
			rows = append(rows, Message{
				ID:       uuid.NewString(),
				ThreadID: thread.ID,
				Position: last,
				Role:     string(m.Role),
				Content:  m.Text,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return errors.Wrap(err, "insert messages")
		}
		return tx.Model(&row).Update("updated_at", time.Now()).Error
	})
}

// HealthCheck verifies database connectivity.
func (s *Postgres) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

var _ agent.Store = (*Postgres)(nil)
