package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"pairspread/internal/domain/models"
	domrepo "pairspread/internal/domain/repository"
	pkgch "pairspread/pkg/clickhouse"
	applogger "pairspread/pkg/logger"

	"github.com/shopspring/decimal"
)

const defaultSignalsTable = "signals"

// SignalsSchema returns the DDL for the signal history table.
func SignalsSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id          UUID,
            pair        LowCardinality(String),
            ts          DateTime64(3, 'UTC'),
            signal      LowCardinality(String),
            position    LowCardinality(String),
            price_a     Float64,
            price_b     Float64,
            hedge_ratio Float64,
            spread      Float64,
            z           Float64,
            threshold   Float64,
            ou_lambda   Float64,
            ou_mu       Float64,
            ou_sigma    Float64,
            side_a      LowCardinality(String),
            side_b      LowCardinality(String),
            qty_a       Decimal(38, 8),
            qty_b       Decimal(38, 8),
            notional_a  Decimal(38, 8),
            notional_b  Decimal(38, 8),
            emitted_at  DateTime64(3, 'UTC')
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (pair, ts)`, table)}
}

const signalColumns = "id, pair, ts, signal, position, price_a, price_b, hedge_ratio, spread, z, threshold, " +
	"ou_lambda, ou_mu, ou_sigma, side_a, side_b, qty_a, qty_b, notional_a, notional_b, emitted_at"

// ClickHouseSignalStore implements SignalStore backed by ClickHouse.
type ClickHouseSignalStore struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
	l      *applogger.Logger
}

func NewClickHouseSignalStore(client *pkgch.Client, l *applogger.Logger) *ClickHouseSignalStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseSignalStore{client: client, db: client.DB(), table: defaultSignalsTable, l: l}
}

func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	if err := s.client.InitSchema(ctx, SignalsSchema(s.table)); err != nil {
		s.l.Error("clickhouse init schema error", applogger.String("table", s.table), applogger.Error(err))
		return err
	}
	return nil
}

func (s *ClickHouseSignalStore) Store(ctx context.Context, ev *models.SignalEvent) error {
	return s.StoreBatch(ctx, []*models.SignalEvent{ev})
}

func (s *ClickHouseSignalStore) StoreBatch(ctx context.Context, evs []*models.SignalEvent) error {
	start := time.Now()
	q, args := buildInsert(s.table, evs)
	if q == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.l.Error("clickhouse insert_signals error",
			applogger.String("table", s.table),
			applogger.Int("rows", len(evs)),
			applogger.Error(err),
		)
		return fmt.Errorf("insert signals: %w", err)
	}
	s.l.Debug("clickhouse insert_signals ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(evs)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *ClickHouseSignalStore) Query(ctx context.Context, q models.SignalQuery) ([]*models.SignalEvent, error) {
	start := time.Now()
	stmt, args := buildSelect(s.table, q)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		s.l.Error("clickhouse query_signals error",
			applogger.String("pair", q.Pair),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := make([]*models.SignalEvent, 0, q.Limit)
	for rows.Next() {
		ev, err := scanSignal(rows)
		if err != nil {
			s.l.Error("clickhouse query_signals scan error",
				applogger.String("pair", q.Pair),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse query_signals ok",
		applogger.String("pair", q.Pair),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close is a no-op; the pool belongs to the ClickHouse client.
func (s *ClickHouseSignalStore) Close() error {
	return nil
}

func buildInsert(table string, evs []*models.SignalEvent) (string, []interface{}) {
	values := make([]string, 0, len(evs))
	args := make([]interface{}, 0, len(evs)*21)
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", 21), ", ") + ")"

	for _, ev := range evs {
		if ev == nil || ev.Pair == "" {
			continue
		}
		alloc := ev.Allocation
		if alloc == nil {
			alloc = &models.Allocation{}
		}
		values = append(values, placeholder)
		args = append(args,
			ev.ID,
			ev.Pair,
			ev.Time.UTC(),
			ev.Signal.String(),
			ev.Position.String(),
			ev.PriceA,
			ev.PriceB,
			ev.HedgeRatio,
			ev.Spread,
			ev.ZScore,
			ev.Threshold,
			ev.OU.Lambda,
			ev.OU.Mu,
			ev.OU.Sigma,
			alloc.SideA,
			alloc.SideB,
			alloc.QtyA,
			alloc.QtyB,
			alloc.NotionalA,
			alloc.NotionalB,
			ev.EmittedAt.UTC(),
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, signalColumns, strings.Join(values, ", ")), args
}

func buildSelect(table string, q models.SignalQuery) (string, []interface{}) {
	where := []string{"pair = ?"}
	args := []interface{}{q.Pair}
	if !q.From.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, q.To.UTC())
	}
	if q.Signal != nil {
		where = append(where, "signal = ?")
		args = append(args, q.Signal.String())
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY ts DESC", signalColumns, table, strings.Join(where, " AND "))
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return stmt, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(r rowScanner) (*models.SignalEvent, error) {
	var (
		ev               models.SignalEvent
		sig, pos         string
		alloc            models.Allocation
		qtyA, qtyB       decimal.Decimal
		notionA, notionB decimal.Decimal
	)
	err := r.Scan(
		&ev.ID, &ev.Pair, &ev.Time, &sig, &pos,
		&ev.PriceA, &ev.PriceB, &ev.HedgeRatio, &ev.Spread, &ev.ZScore, &ev.Threshold,
		&ev.OU.Lambda, &ev.OU.Mu, &ev.OU.Sigma,
		&alloc.SideA, &alloc.SideB, &qtyA, &qtyB, &notionA, &notionB,
		&ev.EmittedAt,
	)
	if err != nil {
		return nil, err
	}
	if ev.Signal, err = models.ParseSignal(sig); err != nil {
		return nil, err
	}
	if ev.Position, err = models.ParsePosition(pos); err != nil {
		return nil, err
	}
	ev.Ready = true
	if alloc.SideA != "" {
		alloc.QtyA, alloc.QtyB = qtyA, qtyB
		alloc.NotionalA, alloc.NotionalB = notionA, notionB
		ev.Allocation = &alloc
	}
	return &ev, nil
}

var _ domrepo.SignalStore = (*ClickHouseSignalStore)(nil)
