package types

import (
	"time"
)

type ItemType string

const (
	ItemStatute      ItemType = "Ustawa"
	ItemRegulation   ItemType = "Rozporządzenie"
	ItemAnnouncement ItemType = "Obwieszczenie"
)

// Act is a legislative document as served to clients.
type Act struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	ActNumber        *string    `json:"act_number,omitempty"`
	SimpleTitle      *string    `json:"simple_title,omitempty"`
	Content          *string    `json:"content,omitempty"`
	ImpactSection    *string    `json:"impact_section,omitempty"`
	ItemType         ItemType   `json:"item_type"`
	AnnouncementDate time.Time  `json:"announcement_date"`
	Promulgation     *time.Time `json:"promulgation,omitempty"`
	Keywords         []string   `json:"keywords"`
	Category         *string    `json:"category,omitempty"`
	Votes            *Votes     `json:"votes,omitempty"`
	ConfidenceScore  *float64   `json:"confidence_score,omitempty"`
	File             string     `json:"file"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Votes is the vote record attached to an act. Field names follow the
// JSON stored in the acts.votes column.
type Votes struct {
	Parties             map[string]PartyVotes   `json:"parties,omitempty"`
	Summary             *VoteSummary            `json:"summary,omitempty"`
	Government          *GovernmentVotes        `json:"government,omitempty"`
	VotesSupportByGroup map[string]GroupSupport `json:"votesSupportByGroup,omitempty"`
}

type VoteCount struct {
	Yes     int `json:"yes"`
	No      int `json:"no"`
	Abstain int `json:"abstain"`
	Absent  int `json:"absent"`
}

type VotePercentages struct {
	Yes     float64 `json:"yes"`
	No      float64 `json:"no"`
	Abstain float64 `json:"abstain"`
	Absent  float64 `json:"absent"`
}

type PartyVotes struct {
	Votes        VoteCount       `json:"votes"`
	Percentages  VotePercentages `json:"percentages"`
	TotalMembers int             `json:"totalMembers"`
}

type VoteSummary struct {
	VoteCount
	Total       int             `json:"total"`
	Percentages VotePercentages `json:"percentages"`
}

type GovernmentVotes struct {
	Parties         []string        `json:"parties"`
	VotesPercentage VotePercentages `json:"votesPercentage"`
}

type GroupSupport struct {
	YesVotes      int     `json:"yesVotes"`
	YesPercentage float64 `json:"yesPercentage"`
}

const (
	GroupGovernment = "government"
	GroupOpposition = "opposition"
)

type Category struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords,omitempty"`
}

type ActsResponse struct {
	Acts       []Act      `json:"acts"`
	Categories []Category `json:"categories"`
	Sort       string     `json:"sort"`
	Order      string     `json:"order"`
}

// Plan is a subscription plan offered through the payments provider.
type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Interval    string `json:"interval"`
	PriceID     string `json:"price_id"`
}

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

const RoleAdmin = "admin"

// User is the part of an identity-provider profile this service relies on.
type User struct {
	ID                 string
	Role               string
	SubscriptionStatus SubscriptionStatus
	ClicksThisMonth    int
	ClicksMonth        string
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// SubscriptionEvent is a verified payments webhook reduced to what changes
// a user's subscription status.
type SubscriptionEvent struct {
	Type   string
	UserID string
	Status SubscriptionStatus
}

type Config struct {
	MonitoringTime time.Duration
	SourceDir      string
	ArchiveDir     string
	BadDir         string
}
