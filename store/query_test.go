package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legis/types"
)

// recordingPool remembers the last statement and answers QueryRow with row.
type recordingPool struct {
	sql  string
	args []any
	row  fakeRow
}

func (r *recordingPool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.CommandTag{}, nil
}

func (r *recordingPool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	r.sql, r.args = sql, args
	return nil, errors.New("not supported")
}

func (r *recordingPool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	r.sql, r.args = sql, args
	return r.row
}

func (r *recordingPool) Ping(context.Context) error { return nil }
func (r *recordingPool) Close()                     {}

// fakeRow assigns vals to the scan targets in order; nil leaves a target untouched.
type fakeRow struct {
	vals []any
	err  error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	if len(dest) != len(f.vals) {
		return errors.New("scan: column count mismatch")
	}
	for i, v := range f.vals {
		if v == nil {
			continue
		}
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

var stamp = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func actRow(id int64, content string, votes []byte) fakeRow {
	announced := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return fakeRow{vals: []any{
		id, "Ustawa o VAT", nil, strPtr("VAT po ludzku"), strPtr(content), nil,
		"Ustawa", &announced, nil, []string{"podatki"}, nil, votes,
		floatPtr(1.0), "", stamp,
	}}
}

func floatPtr(f float64) *float64 { return &f }

func newRecordingStore(row fakeRow) (*PostgresStore, *recordingPool) {
	rec := &recordingPool{row: row}
	return &PostgresStore{pool: rec, logger: slog.Default()}, rec
}

func TestUpdateActBuildsSortedSet(t *testing.T) {
	s, rec := newRecordingStore(actRow(7, "nowa treść", nil))

	act, err := s.UpdateAct(context.Background(), 7, map[string]any{
		"content":          "nowa treść",
		"confidence_score": 1.0,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.sql,
		"UPDATE acts SET confidence_score = $1, content = $2, updated_at = NOW() WHERE id = $3 RETURNING "), rec.sql)
	assert.Equal(t, []any{1.0, "nowa treść", int64(7)}, rec.args)

	assert.Equal(t, int64(7), act.ID)
	assert.Equal(t, types.ItemStatute, act.ItemType)
	assert.Equal(t, "nowa treść", *act.Content)
	assert.Equal(t, "VAT po ludzku", *act.SimpleTitle)
	assert.Equal(t, []string{"podatki"}, act.Keywords)
	assert.Equal(t, stamp, act.UpdatedAt)
}

func TestUpdateActRejectsBeforeQuerying(t *testing.T) {
	s, rec := newRecordingStore(fakeRow{})

	_, err := s.UpdateAct(context.Background(), 7, map[string]any{"title": "x"})
	assert.ErrorContains(t, err, `"title"`)
	_, err = s.UpdateAct(context.Background(), 7, nil)
	assert.Error(t, err)
	assert.Empty(t, rec.sql)
}

func TestNoRowsIsNotFound(t *testing.T) {
	s, _ := newRecordingStore(fakeRow{err: pgx.ErrNoRows})

	_, err := s.UpdateAct(context.Background(), 99, map[string]any{"content": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetActByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)

	category, err := s.FindCategoryByKeywords(context.Background(), []string{"podatki"})
	require.NoError(t, err)
	assert.Empty(t, category)
}

func TestGetActDecodesVotes(t *testing.T) {
	s, rec := newRecordingStore(actRow(3, "treść", []byte(`{"parties":{"KO":{"votes":{"yes":3}}}}`)))

	act, err := s.GetActByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, rec.args)
	require.NotNil(t, act.Votes)
	assert.Equal(t, 3, act.Votes.Parties["KO"].Votes.Yes)

	s, _ = newRecordingStore(actRow(3, "treść", []byte(`{"parties":`)))
	_, err = s.GetActByID(context.Background(), 3)
	assert.ErrorContains(t, err, "decode votes of act 3")
}

func TestSaveActKeepsAdminColumnsOnConflict(t *testing.T) {
	s, rec := newRecordingStore(fakeRow{vals: []any{int64(11)}})

	act := types.Act{
		Title:         "Ustawa o VAT",
		Content:       strPtr("treść"),
		ImpactSection: strPtr("Dotyczy przedsiębiorców"),
		ItemType:      types.ItemStatute,
		Keywords:      []string{"podatki"},
		Votes: &types.Votes{Parties: map[string]types.PartyVotes{
			"KO": {Votes: types.VoteCount{Yes: 3}},
		}},
	}
	id, err := s.SaveAct(context.Background(), "DU/2024/7", act)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	require.Len(t, rec.args, 14)
	assert.Equal(t, "DU/2024/7", rec.args[0])
	assert.Equal(t, "Ustawa", rec.args[5])
	assert.Equal(t, act.ImpactSection, rec.args[13])

	var stored types.Votes
	require.NoError(t, json.Unmarshal(rec.args[10].([]byte), &stored))
	assert.Equal(t, 3, stored.Parties["KO"].Votes.Yes)

	_, onConflict, found := strings.Cut(rec.sql, "ON CONFLICT (idempotency_key) DO UPDATE SET")
	require.True(t, found)
	for _, col := range []string{"content", "simple_title", "impact_section", "confidence_score"} {
		assert.NotContains(t, onConflict, col+" = EXCLUDED", col)
	}
	assert.Contains(t, onConflict, "votes = EXCLUDED.votes")
}
