package receipt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	postgresx "github.com/tanpawarit/remibot/pkg/postgres"
	"github.com/uptrace/bun"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

type PostgresStore struct {
	db bun.IDB
}

func NewPostgresStore(db bun.IDB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return postgresx.CreateTables(ctx, s.db, (*Receipt)(nil))
}

func (s *PostgresStore) Insert(ctx context.Context, r *Receipt) error {
	_, err := s.db.NewInsert().Model(r).Exec(ctx)
	if postgresx.IsUniqueViolation(err) {
		return fmt.Errorf("%w: receipt %s", contractx.ErrDuplicateKey, r.ID)
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Receipt, error) {
	r := new(Receipt)
	err := s.db.NewSelect().Model(r).Where("r.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: receipt %s", contractx.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Receipt, error) {
	var rows []Receipt
	if err := filter.apply(s.db.NewSelect().Model(&rows)).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

type MemoryStore struct {
	rows *xsync.MapOf[string, Receipt]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: xsync.NewMapOf[string, Receipt]()}
}

func (s *MemoryStore) Insert(_ context.Context, r *Receipt) error {
	if _, loaded := s.rows.LoadOrStore(r.ID, *r); loaded {
		return fmt.Errorf("%w: receipt %s", contractx.ErrDuplicateKey, r.ID)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Receipt, error) {
	r, ok := s.rows.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: receipt %s", contractx.ErrNotFound, id)
	}
	return &r, nil
}

func (s *MemoryStore) Len() int {
	return s.rows.Size()
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Receipt, error) {
	var rows []Receipt
	s.rows.Range(func(_ string, r Receipt) bool {
		if filter.matches(&r) {
			rows = append(rows, r)
		}
		return true
	})
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if limit := filter.limit(); len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}
