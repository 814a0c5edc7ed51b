package usecase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"pairspread/internal/domain/models"
	"pairspread/internal/services/spread"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestReplayerSkipsHeaderAndBadRows(t *testing.T) {
	cfg := spread.DefaultConfig()
	cfg.Lookback = 3
	r, err := NewReplayer(cfg, "A/B", nil)
	require.NoError(t, err)

	in := strings.NewReader(`timestamp,priceA,priceB
1704067200,10,5
1704067201,11,
1704067202,12,6
garbage,1,1
1704067203,13,6.5
`)
	var out bytes.Buffer
	sum, err := r.Run(context.Background(), in, &out)
	require.NoError(t, err)

	assert.Equal(t, 6, sum.Rows)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, int64(3), sum.Ticks)
	assert.Equal(t, 2, sum.Degeneracies["insufficient_data"])

	lines := decodeLines(t, out.Bytes())
	require.Len(t, lines, 4)
	assert.Equal(t, models.ReasonWarmup, lines[0]["reason"])
	assert.Equal(t, models.ReasonMissingPrice, lines[1]["reason"])
	assert.Equal(t, "A/B", lines[0]["pair"])
}

func TestReplayerCountsSignals(t *testing.T) {
	cfg := spread.DefaultConfig()
	cfg.Lookback = 50
	r, err := NewReplayer(cfg, "A/B", nil)
	require.NoError(t, err)

	a, b := simulatePair(42, 600)
	var csv strings.Builder
	for i := range a {
		fmt.Fprintf(&csv, "%s,%f,%f\n", t0.Add(time.Duration(i)*time.Second).Format("2006-01-02T15:04:05Z07:00"), a[i], b[i])
	}
	var out bytes.Buffer
	sum, err := r.Run(context.Background(), strings.NewReader(csv.String()), &out)
	require.NoError(t, err)

	assert.Equal(t, int64(600), sum.Ticks)
	assert.Zero(t, sum.Skipped)
	assert.GreaterOrEqual(t, sum.Entries, sum.Exits)
	assert.LessOrEqual(t, sum.Entries-sum.Exits, 1)
	assert.True(t, sum.Final.Ready)
	assert.Len(t, decodeLines(t, out.Bytes()), 600)
}

func TestReplayerStopsOnCancel(t *testing.T) {
	r, err := NewReplayer(spread.DefaultConfig(), "A/B", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, strings.NewReader("1704067200,10,5\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
