package fight

import (
	"sort"
	"strings"
)

// RawEvent is the normalized shape of one fight night as reported by an
// upstream source. It is produced fresh on every fetch and never persisted.
type RawEvent struct {
	ID     string `validate:"required"`
	Name   string `validate:"required"`
	Date   string
	Status string
}

type RawCompetitor struct {
	Name   string
	Winner bool
}

type RawFight struct {
	ID          string
	Competitors []RawCompetitor
	Status      string
	Method      string
	Round       string
}

type RawEventWithCard struct {
	ID     string `validate:"required"`
	Name   string
	Date   string
	Fights []RawFight
}

// UpcomingMatch is a scheduled fight with at least one Dagestani
// participant. The upcoming collection is fully replaced on every refresh.
type UpcomingMatch struct {
	EventID      string `json:"eventId"`
	EventName    string `json:"eventName"`
	EventDate    string `json:"eventDate"`
	FighterA     string `json:"fighterA"`
	FighterB     string `json:"fighterB"`
	IsDagestaniA bool   `json:"isDagestaniA"`
	IsDagestaniB bool   `json:"isDagestaniB"`
	CountryA     string `json:"countryA,omitempty"`
	CountryB     string `json:"countryB,omitempty"`
}

type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
)

// HistoricalMatch is a completed Dagestani fight. The historical collection
// is append-only: records are added once and never mutated or removed.
type HistoricalMatch struct {
	EventID          string `json:"eventId"`
	EventName        string `json:"eventName"`
	EventDate        string `json:"eventDate"`
	FighterA         string `json:"fighterA"`
	FighterB         string `json:"fighterB"`
	Winner           string `json:"winner"`
	Method           string `json:"method"`
	Round            string `json:"round"`
	IsDagestaniA     bool   `json:"isDagestaniA"`
	IsDagestaniB     bool   `json:"isDagestaniB"`
	CountryA         string `json:"countryA,omitempty"`
	CountryB         string `json:"countryB,omitempty"`
	DagestaniFighter string `json:"dagestaniFighter"`
	Result           Result `json:"result"`
}

// Stats is derived from the historical collection in full on every run.
// WinRate is a 0-1 fraction.
type Stats struct {
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	Total             int     `json:"total"`
	WinRate           float64 `json:"winRate"`
	UniqueEvents      int     `json:"uniqueEvents,omitempty"`
	FightersAnalyzed  int     `json:"fightersAnalyzed,omitempty"`
	DagestaniFighters int     `json:"dagestaniFighters,omitempty"`
}

var completedMarkers = []string{"post", "final", "complete"}

// IsCompletedStatus reports whether a free-text upstream status describes a
// finished fight or event.
func IsCompletedStatus(status string) bool {
	status = strings.ToLower(status)
	for _, marker := range completedMarkers {
		if strings.Contains(status, marker) {
			return true
		}
	}
	return false
}

// Categorize partitions events into upcoming and completed using the same
// status rule applied to individual fights during reconciliation.
func Categorize(events []RawEvent) (upcoming, completed []RawEvent) {
	for _, e := range events {
		if IsCompletedStatus(e.Status) {
			completed = append(completed, e)
		} else {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming, completed
}

// Key is the order-independent deduplication key for a historical record:
// the same fight produces the same key no matter which order the two
// fighters arrive in from a source.
func Key(eventID, fighterA, fighterB string) string {
	a, b := fighterA, fighterB
	if b < a {
		a, b = b, a
	}
	return eventID + ":" + a + "|" + b
}

// KeySet builds the dedup index over an existing historical collection.
func KeySet(historical []HistoricalMatch) map[string]struct{} {
	keys := make(map[string]struct{}, len(historical))
	for _, m := range historical {
		keys[Key(m.EventID, m.FighterA, m.FighterB)] = struct{}{}
	}
	return keys
}

// SortUpcomingByDate orders matches ascending by event date. Dates are
// ISO-ish strings from upstream, so lexicographic order is chronological.
func SortUpcomingByDate(matches []UpcomingMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].EventDate < matches[j].EventDate
	})
}

func SortHistoricalByDate(matches []HistoricalMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].EventDate < matches[j].EventDate
	})
}
