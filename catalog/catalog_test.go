package catalog

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legis/types"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixture() []types.Act {
	return []types.Act{
		{
			ID:               1,
			Title:            "Ustawa o VAT",
			Content:          strPtr("<p>Zmiany stawek podatku</p>"),
			ItemType:         types.ItemStatute,
			AnnouncementDate: date(2025, 3, 1),
			Keywords:         []string{"podatki", "VAT"},
		},
		{
			ID:               2,
			Title:            "Rozporządzenie o cenach",
			ItemType:         types.ItemRegulation,
			AnnouncementDate: date(2025, 1, 15),
			Keywords:         []string{"ceny", "energia"},
		},
		{
			ID:               3,
			Title:            "Obwieszczenie w sprawie żywności",
			ItemType:         types.ItemAnnouncement,
			AnnouncementDate: date(2024, 11, 30),
			Keywords:         []string{"rolnictwo"},
		},
	}
}

func ids(acts []types.Act) []int64 {
	out := make([]int64, len(acts))
	for i, a := range acts {
		out[i] = a.ID
	}
	return out
}

func TestFilterScenario(t *testing.T) {
	acts := fixture()[:2]

	got := Filter(acts, Criteria{Query: "vat"})
	assert.Equal(t, []int64{1}, ids(got))

	got = Filter(acts, Criteria{Types: []types.ItemType{types.ItemRegulation}})
	assert.Equal(t, []int64{2}, ids(got))

	got = Filter(acts, Criteria{Query: "o", Types: []types.ItemType{types.ItemStatute}})
	assert.Equal(t, []int64{1}, ids(got))
}

func TestFilterMatchesContentAndKeywords(t *testing.T) {
	acts := fixture()

	assert.Equal(t, []int64{1}, ids(Filter(acts, Criteria{Query: "STAWEK"})))
	assert.Equal(t, []int64{2}, ids(Filter(acts, Criteria{Query: "energ"})))
	assert.Empty(t, Filter(acts, Criteria{Query: "nie ma takiego"}))
}

func TestFilterKeywords(t *testing.T) {
	acts := fixture()

	got := Filter(acts, Criteria{Keywords: []string{"ceny", "rolnictwo"}})
	assert.Equal(t, []int64{2, 3}, ids(got))

	got = Filter(acts, Criteria{Keywords: []string{"ceny"}, Types: []types.ItemType{types.ItemStatute}})
	assert.Empty(t, got)
}

func TestFilterEmptyInputs(t *testing.T) {
	assert.Empty(t, Filter(nil, Criteria{Query: "x"}))
	assert.Len(t, Filter(fixture(), Criteria{}), 3)
}

func TestFilterIdempotent(t *testing.T) {
	for _, q := range []string{"", "o", "vat", "ż", "rozpo"} {
		c := Criteria{Query: q}
		once := Filter(fixture(), c)
		twice := Filter(once, c)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("query %q: filter not idempotent (-once +twice):\n%s", q, diff)
		}
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	acts := fixture()
	before := fixture()

	_ = Apply(acts, Criteria{Query: "o"}, Order{Key: ByTitle, Dir: Desc})

	if diff := cmp.Diff(before, acts); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestSortByDate(t *testing.T) {
	acts := fixture()

	assert.Equal(t, []int64{3, 2, 1}, ids(Sort(acts, Order{Key: ByDate, Dir: Asc})))
	assert.Equal(t, []int64{1, 2, 3}, ids(Sort(acts, Order{Key: ByDate, Dir: Desc})))
}

func TestSortByTitleUsesPolishCollation(t *testing.T) {
	acts := []types.Act{
		{ID: 1, Title: "Żywność"},
		{ID: 2, Title: "Zboże"},
		{ID: 3, Title: "Ćwiczenia"},
		{ID: 4, Title: "Cła"},
	}

	got := Sort(acts, Order{Key: ByTitle, Dir: Asc})
	assert.Equal(t, []int64{4, 3, 2, 1}, ids(got))
}

func TestSortIdempotentAndReversible(t *testing.T) {
	for _, key := range []SortKey{ByTitle, ByDate} {
		asc := Sort(fixture(), Order{Key: key, Dir: Asc})
		again := Sort(asc, Order{Key: key, Dir: Asc})
		assert.Equal(t, ids(asc), ids(again), "key %s", key)

		desc := Sort(fixture(), Order{Key: key, Dir: Desc})
		reversed := ids(asc)
		for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
			reversed[i], reversed[j] = reversed[j], reversed[i]
		}
		assert.Equal(t, reversed, ids(desc), "key %s", key)
	}
}

func TestSortEmpty(t *testing.T) {
	got := Sort(nil, DefaultOrder)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOrder, o)

	o, err = ParseOrder("title", "")
	require.NoError(t, err)
	assert.Equal(t, Order{Key: ByTitle, Dir: Asc}, o)

	_, err = ParseOrder("size", "")
	assert.Error(t, err)
	_, err = ParseOrder("date", "up")
	assert.Error(t, err)
}

func TestSortStateResetsOtherToggle(t *testing.T) {
	s := NewSortState()
	assert.Equal(t, Order{Key: ByDate, Dir: Desc}, s.Order())

	s = s.ToggleDate()
	assert.Equal(t, Order{Key: ByDate, Dir: Asc}, s.Order())

	s = s.ToggleTitle()
	assert.Equal(t, Order{Key: ByTitle, Dir: Asc}, s.Order())
	assert.Equal(t, Desc, s.DateDir)

	s = s.ToggleTitle()
	assert.Equal(t, Order{Key: ByTitle, Dir: Desc}, s.Order())

	s = s.ToggleDate()
	assert.Equal(t, Order{Key: ByDate, Dir: Desc}, s.Order())
	assert.Equal(t, Asc, s.TitleDir)
}

func TestStateOfToggle(t *testing.T) {
	s := StateOf(Order{Key: ByTitle, Dir: Desc})
	assert.Equal(t, Order{Key: ByTitle, Dir: Asc}, s.Toggle(ByTitle).Order())
	assert.Equal(t, Order{Key: ByDate, Dir: Desc}, s.Toggle(ByDate).Order())

	s = StateOf(Order{Key: ByDate, Dir: Asc})
	assert.Equal(t, Order{Key: ByDate, Dir: Desc}, s.Toggle(ByDate).Order())
	assert.Equal(t, Order{Key: ByTitle, Dir: Asc}, s.Toggle(ByTitle).Order())
}

func TestVisible(t *testing.T) {
	acts := fixture()
	acts[0].ConfidenceScore = floatPtr(0.2)
	acts[1].ConfidenceScore = floatPtr(0.5)

	assert.Equal(t, []int64{2, 3}, ids(Visible(acts, 0.5, false)))
	assert.Equal(t, []int64{1, 2, 3}, ids(Visible(acts, 0.5, true)))
}
