// Package votes derives chart data from an act's vote record and builds
// vote records from individual ballots.
package votes

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"legis/types"
)

var ErrInvalidVotes = errors.New("invalid vote record")

// percentage sums may drift by the one-decimal rounding of each component
const sumTolerance = 0.5

type PartyBar struct {
	Party string `json:"party"`
	Yes   int    `json:"yes"`
	No    int    `json:"no"`
}

type ChartData struct {
	Parties          []PartyBar `json:"parties"`
	TotalYes         int        `json:"totalYes"`
	TotalNo          int        `json:"totalNo"`
	PercentYes       float64    `json:"percentYes"`
	PercentNo        float64    `json:"percentNo"`
	GovernmentYesPct float64    `json:"governmentYesPct"`
	GovernmentNoPct  float64    `json:"governmentNoPct"`
	Dots             DotSplit   `json:"dots"`
}

// Chart validates v and derives the modal charts from it: per-party yes/no
// bars, the overall yes share of decisive votes and the government share of
// all yes votes. A nil record yields empty chart data.
func Chart(v *types.Votes) (ChartData, error) {
	if v == nil {
		return ChartData{Parties: []PartyBar{}}, nil
	}
	if err := Validate(v); err != nil {
		return ChartData{}, err
	}

	names := make([]string, 0, len(v.Parties))
	for name := range v.Parties {
		names = append(names, name)
	}
	sort.Strings(names)

	data := ChartData{Parties: make([]PartyBar, 0, len(names))}
	for _, name := range names {
		p := v.Parties[name]
		data.Parties = append(data.Parties, PartyBar{Party: name, Yes: p.Votes.Yes, No: p.Votes.No})
		data.TotalYes += p.Votes.Yes
		data.TotalNo += p.Votes.No
	}

	if decisive := data.TotalYes + data.TotalNo; decisive > 0 {
		data.PercentYes = float64(data.TotalYes) / float64(decisive) * 100
		data.PercentNo = 100 - data.PercentYes
	}

	if gov, ok := v.VotesSupportByGroup[types.GroupGovernment]; ok {
		data.GovernmentYesPct = gov.YesPercentage
	}
	data.GovernmentNoPct = 100 - data.GovernmentYesPct
	data.Dots = SplitDots(data.GovernmentYesPct, 0)
	return data, nil
}

// Validate reports the first inconsistency found in v.
func Validate(v *types.Votes) error {
	if v == nil {
		return nil
	}
	for name, p := range v.Parties {
		if err := checkCounts(p.Votes); err != nil {
			return fmt.Errorf("%w: party %s: %v", ErrInvalidVotes, name, err)
		}
		if p.TotalMembers < 0 {
			return fmt.Errorf("%w: party %s: negative member count", ErrInvalidVotes, name)
		}
		if err := checkPercentages(p.Percentages); err != nil {
			return fmt.Errorf("%w: party %s: %v", ErrInvalidVotes, name, err)
		}
	}
	if s := v.Summary; s != nil {
		if err := checkCounts(s.VoteCount); err != nil {
			return fmt.Errorf("%w: summary: %v", ErrInvalidVotes, err)
		}
		if err := checkPercentages(s.Percentages); err != nil {
			return fmt.Errorf("%w: summary: %v", ErrInvalidVotes, err)
		}
		if sum := s.Yes + s.No + s.Abstain + s.Absent; s.Total > 0 && sum != s.Total {
			return fmt.Errorf("%w: summary counts add up to %d, total is %d", ErrInvalidVotes, sum, s.Total)
		}
	}
	if g := v.Government; g != nil {
		if err := checkPercentages(g.VotesPercentage); err != nil {
			return fmt.Errorf("%w: government: %v", ErrInvalidVotes, err)
		}
	}
	for group, s := range v.VotesSupportByGroup {
		if s.YesVotes < 0 {
			return fmt.Errorf("%w: group %s: negative yes votes", ErrInvalidVotes, group)
		}
		if !validPercent(s.YesPercentage) {
			return fmt.Errorf("%w: group %s: yes percentage %v out of range", ErrInvalidVotes, group, s.YesPercentage)
		}
	}
	return nil
}

func checkCounts(c types.VoteCount) error {
	if c.Yes < 0 || c.No < 0 || c.Abstain < 0 || c.Absent < 0 {
		return errors.New("negative vote count")
	}
	return nil
}

func checkPercentages(p types.VotePercentages) error {
	for _, x := range []float64{p.Yes, p.No, p.Abstain, p.Absent} {
		if !validPercent(x) {
			return fmt.Errorf("percentage %v out of range", x)
		}
	}
	sum := p.Yes + p.No + p.Abstain + p.Absent
	if sum != 0 && math.Abs(sum-100) > sumTolerance {
		return fmt.Errorf("percentages add up to %.1f", sum)
	}
	return nil
}

func validPercent(x float64) bool {
	return !math.IsNaN(x) && x >= 0 && x <= 100
}
