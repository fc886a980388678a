package catalog

import (
	"fmt"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"legis/types"
)

type SortKey string

const (
	ByDate  SortKey = "date"
	ByTitle SortKey = "title"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func (d Direction) Reverse() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// Order is a single active ordering.
type Order struct {
	Key SortKey
	Dir Direction
}

// DefaultOrder lists the newest acts first.
var DefaultOrder = Order{Key: ByDate, Dir: Desc}

const (
	defaultTitleDir = Asc
	defaultDateDir  = Desc
)

// ParseOrder builds an Order from query values, falling back to the default
// direction of the chosen key.
func ParseOrder(key, dir string) (Order, error) {
	var o Order
	switch SortKey(key) {
	case "":
		o.Key = DefaultOrder.Key
	case ByDate, ByTitle:
		o.Key = SortKey(key)
	default:
		return Order{}, fmt.Errorf("unknown sort key %q", key)
	}
	switch Direction(dir) {
	case "":
		o.Dir = defaultDir(o.Key)
	case Asc, Desc:
		o.Dir = Direction(dir)
	default:
		return Order{}, fmt.Errorf("unknown sort direction %q", dir)
	}
	return o, nil
}

func defaultDir(k SortKey) Direction {
	if k == ByTitle {
		return defaultTitleDir
	}
	return defaultDateDir
}

// Sort returns a copy of acts in the given order. Titles are compared with
// Polish collation so that diacritics sort next to their base letters.
func Sort(acts []types.Act, o Order) []types.Act {
	sorted := slices.Clone(acts)
	if sorted == nil {
		sorted = []types.Act{}
	}

	var cmp func(a, b types.Act) int
	switch o.Key {
	case ByTitle:
		col := collate.New(language.Polish)
		cmp = func(a, b types.Act) int {
			return col.CompareString(a.Title, b.Title)
		}
	default:
		cmp = func(a, b types.Act) int {
			return a.AnnouncementDate.Compare(b.AnnouncementDate)
		}
	}
	if o.Dir == Desc {
		asc := cmp
		cmp = func(a, b types.Act) int { return asc(b, a) }
	}

	slices.SortStableFunc(sorted, cmp)
	return sorted
}

// SortState mirrors the two sort toggles of the listing: choosing one
// ordering resets the other toggle to its default direction.
type SortState struct {
	Active   SortKey
	TitleDir Direction
	DateDir  Direction
}

func NewSortState() SortState {
	return SortState{Active: ByDate, TitleDir: defaultTitleDir, DateDir: defaultDateDir}
}

// StateOf is the toggle state in which o is the active ordering.
func StateOf(o Order) SortState {
	s := NewSortState()
	s.Active = o.Key
	if o.Key == ByTitle {
		s.TitleDir = o.Dir
	} else {
		s.DateDir = o.Dir
	}
	return s
}

// Toggle presses the toggle of key.
func (s SortState) Toggle(key SortKey) SortState {
	if key == ByTitle {
		return s.ToggleTitle()
	}
	return s.ToggleDate()
}

// ToggleTitle activates title ordering, flipping its direction when it was
// already active.
func (s SortState) ToggleTitle() SortState {
	if s.Active == ByTitle {
		s.TitleDir = s.TitleDir.Reverse()
	}
	s.Active = ByTitle
	s.DateDir = defaultDateDir
	return s
}

// ToggleDate activates date ordering, flipping its direction when it was
// already active.
func (s SortState) ToggleDate() SortState {
	if s.Active == ByDate {
		s.DateDir = s.DateDir.Reverse()
	}
	s.Active = ByDate
	s.TitleDir = defaultTitleDir
	return s
}

func (s SortState) Order() Order {
	if s.Active == ByTitle {
		return Order{Key: ByTitle, Dir: s.TitleDir}
	}
	return Order{Key: ByDate, Dir: s.DateDir}
}
