// Package stats counts node categories in a filtered graph and derives
// engagement indicators from the counts.
//
// Counting is relative to the filtered view: a user is active when it is the
// source of at least one link that survived the filter. Indicators are plain
// float64 arithmetic, so an empty denominator yields NaN or ±Inf rather than
// an error.
package stats

import (
	"math"
	"strconv"

	"github.com/matzehuels/forceweave/pkg/filter"
	"github.com/matzehuels/forceweave/pkg/graph"
)

// Counter identifies one count.
type Counter string

// Counters in canonical order.
const (
	Users         Counter = "users"
	ActiveUsers   Counter = "active_users"
	InactiveUsers Counter = "inactive_users"
	Comments      Counter = "comments"
	Replies       Counter = "replies"
	Agreements    Counter = "agreements"
	Divpoints     Counter = "divpoints"
	Questions     Counter = "questions"
)

// AllCounters lists every counter in canonical order.
var AllCounters = []Counter{Users, ActiveUsers, InactiveUsers, Comments, Replies, Agreements, Divpoints, Questions}

var counterTitles = map[Counter]string{
	Users:         "Users",
	ActiveUsers:   "Active users",
	InactiveUsers: "Inactive users",
	Comments:      "Comments",
	Replies:       "Replies",
	Agreements:    "Agreements",
	Divpoints:     "Divergence points",
	Questions:     "Questions",
}

// Title returns the display title of c.
func (c Counter) Title() string {
	if t, ok := counterTitles[c]; ok {
		return t
	}
	return string(c)
}

// categoryCounters maps categories onto the counter they feed.
var categoryCounters = map[graph.Category]Counter{
	graph.CategoryUser:      Users,
	graph.CategoryComment:   Comments,
	graph.CategoryReply:     Replies,
	graph.CategoryAgreement: Agreements,
	graph.CategoryDivpoint:  Divpoints,
	graph.CategoryQuestion:  Questions,
}

// Subset returns the counters reported in mode.
func Subset(mode filter.Mode) []Counter {
	switch mode {
	case filter.ModeProject:
		return []Counter{Comments, Replies, Agreements, Divpoints, Questions}
	case filter.ModeUser:
		return []Counter{Comments, Replies, Agreements, Users, ActiveUsers}
	case filter.ModeIndicators:
		return []Counter{Comments, Replies, Agreements, Users, Questions, ActiveUsers, InactiveUsers}
	default:
		return AllCounters
	}
}

// Counters holds the reported counts of one view.
type Counters struct {
	values map[Counter]int
}

// Entry is one counter and its value.
type Entry struct {
	Counter Counter `json:"counter"`
	Title   string  `json:"title"`
	Value   int     `json:"value"`
}

// Get returns the value of c and whether it is reported.
func (c Counters) Get(id Counter) (int, bool) {
	v, ok := c.values[id]
	return v, ok
}

// Len returns the number of reported counters.
func (c Counters) Len() int { return len(c.values) }

// Entries lists the reported counters in canonical order.
func (c Counters) Entries() []Entry {
	out := make([]Entry, 0, len(c.values))
	for _, id := range AllCounters {
		if v, ok := c.values[id]; ok {
			out = append(out, Entry{Counter: id, Title: id.Title(), Value: v})
		}
	}
	return out
}

// Map returns the counters keyed by name.
func (c Counters) Map() map[string]int {
	out := make(map[string]int, len(c.values))
	for k, v := range c.values {
		out[string(k)] = v
	}
	return out
}

// Count tallies the nodes of filtered per category and restricts the
// result to the counters mode reports.
func Count(filtered graph.Data, mode filter.Mode) Counters {
	sources := make(map[string]struct{}, len(filtered.Links))
	for _, l := range filtered.Links {
		if l != nil {
			sources[l.Source.ID()] = struct{}{}
		}
	}

	all := make(map[Counter]int, len(AllCounters))
	for _, n := range filtered.Nodes {
		if n == nil {
			continue
		}
		id, ok := categoryCounters[n.Category]
		if !ok {
			continue
		}
		all[id]++
		if n.Category == graph.CategoryUser {
			if _, active := sources[n.ID]; active {
				all[ActiveUsers]++
			} else {
				all[InactiveUsers]++
			}
		}
	}

	values := make(map[Counter]int)
	for _, id := range Subset(mode) {
		values[id] = all[id]
	}
	return Counters{values: values}
}

// =============================================================================
// Indicators
// =============================================================================

// Indicators are the engagement metrics derived from counters.
type Indicators struct {
	ActivityIndex         float64 `json:"activity_index"`
	Interactions          float64 `json:"interactions"`
	PotentialResponses    float64 `json:"potential_responses"`
	QuestionEngagement    float64 `json:"question_engagement"`
	PotentialInteractions float64 `json:"potential_interactions"`
	InteractionEngagement float64 `json:"interaction_engagement"`
	MeanEngagement        float64 `json:"mean_engagement"`
}

// Derive computes indicators from c. Unreported counters read as zero.
func Derive(c Counters) Indicators {
	get := func(id Counter) float64 {
		v, _ := c.Get(id)
		return float64(v)
	}
	users, active := get(Users), get(ActiveUsers)
	comments, questions := get(Comments), get(Questions)

	var ind Indicators
	ind.ActivityIndex = active / users * 100
	ind.Interactions = get(Replies) + get(Agreements)
	ind.PotentialResponses = active * questions
	ind.QuestionEngagement = comments / ind.PotentialResponses * 100
	ind.PotentialInteractions = active * (comments / 2)
	ind.InteractionEngagement = ind.Interactions / ind.PotentialInteractions * 100
	ind.MeanEngagement = (ind.QuestionEngagement + ind.InteractionEngagement) / 2
	return ind
}

// Degenerate reports whether any indicator is NaN or infinite.
func (ind Indicators) Degenerate() bool {
	for _, kv := range ind.Entries() {
		if math.IsNaN(kv.Value) || math.IsInf(kv.Value, 0) {
			return true
		}
	}
	return false
}

// IndicatorEntry is one named indicator value.
type IndicatorEntry struct {
	Name  string
	Value float64
}

// Entries lists the indicators in display order.
func (ind Indicators) Entries() []IndicatorEntry {
	return []IndicatorEntry{
		{"Activity index", ind.ActivityIndex},
		{"Interactions", ind.Interactions},
		{"Potential responses", ind.PotentialResponses},
		{"Question engagement", ind.QuestionEngagement},
		{"Potential interactions", ind.PotentialInteractions},
		{"Interaction engagement", ind.InteractionEngagement},
		{"Mean engagement", ind.MeanEngagement},
	}
}

// Format renders v with two decimals.
func Format(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
