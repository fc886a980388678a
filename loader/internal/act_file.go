package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"legis/types"
	"legis/votes"
)

const dateLayout = "2006-01-02"

var validate = validator.New(validator.WithRequiredStructEnabled())

// RawAct is one act as exported by the ingestion pipeline. Votes may come
// precomputed or as individual ballots to be tallied here.
type RawAct struct {
	ELI              string         `json:"eli" validate:"required"`
	Title            string         `json:"title" validate:"required"`
	Type             string         `json:"type" validate:"required,oneof=Ustawa Rozporządzenie Obwieszczenie"`
	ActNumber        *string        `json:"act_number"`
	SimpleTitle      *string        `json:"simple_title"`
	Content          *string        `json:"content"`
	ImpactSection    *string        `json:"impact_section"`
	AnnouncementDate string         `json:"announcement_date" validate:"required,datetime=2006-01-02"`
	Promulgation     string         `json:"promulgation" validate:"omitempty,datetime=2006-01-02"`
	Keywords         []string       `json:"keywords"`
	Category         *string        `json:"category"`
	Votes            *types.Votes   `json:"votes"`
	Ballots          []votes.Ballot `json:"ballots"`
	Term             int            `json:"term"`
	ConfidenceScore  *float64       `json:"confidence_score" validate:"omitempty,gte=0,lte=1"`
	File             string         `json:"file"`
}

// ParsedAct is an act ready to be upserted under Key.
type ParsedAct struct {
	Key string
	Act types.Act
}

// DecodeActs reads a file holding a single act object or an array of them.
func DecodeActs(data []byte) ([]RawAct, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty act file")
	}

	var raws []RawAct
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode act list: %w", err)
		}
	} else {
		var raw RawAct
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode act: %w", err)
		}
		raws = []RawAct{raw}
	}
	if len(raws) == 0 {
		return nil, errors.New("act file holds no acts")
	}
	return raws, nil
}

// ToAct validates raw and converts it. governmentFor maps a parliamentary
// term to its governing parties and is only consulted for ballots.
func (raw RawAct) ToAct(governmentFor func(term int) []string) (ParsedAct, error) {
	if err := validate.Struct(raw); err != nil {
		return ParsedAct{}, fmt.Errorf("act %q: %w", raw.ELI, err)
	}

	announced, err := time.Parse(dateLayout, raw.AnnouncementDate)
	if err != nil {
		return ParsedAct{}, fmt.Errorf("act %q: announcement_date: %w", raw.ELI, err)
	}

	act := types.Act{
		Title:            strings.TrimSpace(raw.Title),
		ActNumber:        raw.ActNumber,
		SimpleTitle:      raw.SimpleTitle,
		Content:          raw.Content,
		ImpactSection:    raw.ImpactSection,
		ItemType:         types.ItemType(raw.Type),
		AnnouncementDate: announced,
		Keywords:         raw.Keywords,
		Category:         raw.Category,
		Votes:            raw.Votes,
		ConfidenceScore:  raw.ConfidenceScore,
		File:             raw.File,
	}
	if act.Keywords == nil {
		act.Keywords = []string{}
	}
	if raw.Promulgation != "" {
		p, err := time.Parse(dateLayout, raw.Promulgation)
		if err != nil {
			return ParsedAct{}, fmt.Errorf("act %q: promulgation: %w", raw.ELI, err)
		}
		act.Promulgation = &p
	}

	if len(raw.Ballots) > 0 {
		act.Votes = votes.Tally(raw.Ballots, governmentFor(raw.Term))
	}
	if err := votes.Validate(act.Votes); err != nil {
		return ParsedAct{}, fmt.Errorf("act %q: %w", raw.ELI, err)
	}

	return ParsedAct{Key: raw.ELI, Act: act}, nil
}
