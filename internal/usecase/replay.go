package usecase

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"pairspread/internal/domain/models"
	"pairspread/internal/services/spread"
	applogger "pairspread/pkg/logger"
	"pairspread/pkg/util"
)

// ReplaySummary counts what a replay produced.
type ReplaySummary struct {
	Rows         int             `json:"rows"`
	Skipped      int             `json:"skipped"`
	Ticks        int64           `json:"ticks"`
	Entries      int             `json:"entries"`
	Exits        int             `json:"exits"`
	Degeneracies map[string]int  `json:"degeneracies"`
	Final        models.Snapshot `json:"final"`
}

// Replayer runs one estimator over a CSV of timestamp,priceA,priceB rows.
type Replayer struct {
	est     *spread.Estimator
	summary ReplaySummary
	l       *applogger.Logger
}

func NewReplayer(cfg spread.Config, pair string, l *applogger.Logger) (*Replayer, error) {
	if l == nil {
		l = applogger.Nop()
	}
	r := &Replayer{l: l, summary: ReplaySummary{Degeneracies: map[string]int{}}}
	est, err := spread.New(cfg, spread.WithPair(pair), spread.WithObserver(spread.ObserverFuncs{
		OnDegenerate: func(_ string, kind spread.Degeneracy, _ string) {
			r.summary.Degeneracies[kind.String()]++
		},
	}))
	if err != nil {
		return nil, err
	}
	r.est = est
	return r, nil
}

// Run reads rows from in and writes one JSON decision per line to out.
// An empty price cell is an absent leg. A header row and rows with an unreadable timestamp are skipped.
func (r *Replayer) Run(ctx context.Context, in io.Reader, out io.Writer) (ReplaySummary, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	enc := json.NewEncoder(out)

	for {
		if err := ctx.Err(); err != nil {
			return r.finish(), err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.finish(), fmt.Errorf("read csv: %w", err)
		}
		r.summary.Rows++
		if len(rec) < 3 {
			r.summary.Skipped++
			continue
		}
		ts, ok := util.ParseTime(strings.TrimSpace(rec[0]))
		if !ok {
			if r.summary.Rows > 1 {
				r.l.Warn("replay: bad timestamp", applogger.Int("row", r.summary.Rows), applogger.String("value", rec[0]))
			}
			r.summary.Skipped++
			continue
		}

		d := r.est.Ingest(price(rec[1]), price(rec[2]), ts)
		switch d.Signal {
		case models.EnterLong, models.EnterShort:
			r.summary.Entries++
		case models.Exit:
			r.summary.Exits++
		}
		if err := enc.Encode(d); err != nil {
			return r.finish(), fmt.Errorf("write decision: %w", err)
		}
	}
	return r.finish(), nil
}

func (r *Replayer) finish() ReplaySummary {
	r.summary.Final = r.est.Snapshot()
	r.summary.Ticks = r.summary.Final.Ticks
	return r.summary
}

// price maps an absent cell to 0, which the estimator treats as a missing leg.
func price(cell string) float64 {
	if v := util.ParseOptionalFloat(cell); v != nil {
		return *v
	}
	return 0
}
