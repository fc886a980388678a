package votes

import (
	"math"
	"slices"
	"strings"

	"legis/types"
)

// Ballot is one member's vote as published by the Sejm API.
type Ballot struct {
	Club string `json:"club"`
	Vote string `json:"vote"`
}

type tally struct {
	types.VoteCount
	total int
}

func (t *tally) add(vote string) {
	t.total++
	switch strings.ToUpper(vote) {
	case "YES":
		t.Yes++
	case "NO":
		t.No++
	case "ABSTAIN":
		t.Abstain++
	default:
		t.Absent++
	}
}

func (t *tally) merge(o tally) {
	t.Yes += o.Yes
	t.No += o.No
	t.Abstain += o.Abstain
	t.Absent += o.Absent
	t.total += o.total
}

func (t tally) percentages() types.VotePercentages {
	if t.total <= 0 {
		return types.VotePercentages{}
	}
	return types.VotePercentages{
		Yes:     share(t.Yes, t.total),
		No:      share(t.No, t.total),
		Abstain: share(t.Abstain, t.total),
		Absent:  share(t.Absent, t.total),
	}
}

// share is n/total as a percentage rounded to one decimal place.
func share(n, total int) float64 {
	return math.Round(float64(n)/float64(total)*1000) / 10
}

// Tally builds a complete vote record from individual ballots. Ballots
// without a club are skipped; votes other than YES, NO and ABSTAIN count
// as absent.
func Tally(ballots []Ballot, governmentParties []string) *types.Votes {
	byParty := make(map[string]*tally)
	for _, b := range ballots {
		if b.Club == "" {
			continue
		}
		t, ok := byParty[b.Club]
		if !ok {
			t = &tally{}
			byParty[b.Club] = t
		}
		t.add(b.Vote)
	}

	v := &types.Votes{
		Parties: make(map[string]types.PartyVotes, len(byParty)),
		Government: &types.GovernmentVotes{
			Parties: slices.Clone(governmentParties),
		},
		VotesSupportByGroup: map[string]types.GroupSupport{
			types.GroupGovernment: {},
			types.GroupOpposition: {},
		},
	}
	if v.Government.Parties == nil {
		v.Government.Parties = []string{}
	}

	var summary, gov tally
	var govYes, oppYes int
	for party, t := range byParty {
		v.Parties[party] = types.PartyVotes{
			Votes:        t.VoteCount,
			Percentages:  t.percentages(),
			TotalMembers: t.total,
		}
		summary.merge(*t)
		if slices.Contains(governmentParties, party) {
			gov.merge(*t)
			govYes += t.Yes
		} else {
			oppYes += t.Yes
		}
	}

	v.Summary = &types.VoteSummary{
		VoteCount:   summary.VoteCount,
		Total:       summary.total,
		Percentages: summary.percentages(),
	}
	v.Government.VotesPercentage = gov.percentages()

	if summary.Yes > 0 {
		v.VotesSupportByGroup[types.GroupGovernment] = types.GroupSupport{
			YesVotes:      govYes,
			YesPercentage: share(govYes, summary.Yes),
		}
		v.VotesSupportByGroup[types.GroupOpposition] = types.GroupSupport{
			YesVotes:      oppYes,
			YesPercentage: share(oppYes, summary.Yes),
		}
	}
	return v
}
