package search

import (
	"sort"
	"strings"

	"github.com/open-chat-labs/open-chat-sub005/pkg/chat/events"
	"github.com/open-chat-labs/open-chat-sub005/pkg/models"
	"github.com/open-chat-labs/open-chat-sub005/pkg/types"
)

// Field weights: body text counts most, then a file's name, then its
// caption. Weights and boosts are fixed so a query is reproducible on
// any replica.
const (
	weightText    = 3.0
	weightFile    = 2.0
	weightCaption = 1.0

	matchPrefix      = 3.0
	matchExact       = 2.0
	matchInsensitive = 1.0
)

// Query is one search over a chat's main log.
type Query struct {
	Terms      string
	MaxResults int
	// MinVisible is the caller's visibility floor; messages below it
	// never match.
	MinVisible types.EventIndex
}

// DefaultMaxResults bounds a search when the caller passes no cap.
const DefaultMaxResults = 20

// Result is one scored hit, newest-first within equal scores.
type Result struct {
	MessageID    types.MessageID
	EventIndex   types.EventIndex
	MessageIndex types.MessageIndex
	Score        float64
}

// Search scans the chat's main log for messages matching the query
// terms and returns the best MaxResults hits, highest score first.
// Soft-deleted messages still match until their payload is purged;
// after the purge there is no content left to score.
func Search(log *events.Log, q Query) ([]Result, error) {
	terms := splitTerms(q.Terms)
	if len(terms) == 0 {
		return nil, nil
	}
	max := q.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}

	latest := log.LatestMessageIndex()
	var out []Result
	start := types.EventIndex(1)
	for {
		page, err := log.Range(events.RangeArgs{
			Start:      start,
			Ascending:  true,
			MaxEvents:  events.DefaultMaxEvents,
			MinVisible: q.MinVisible,
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, w := range page {
			msg := w.Event.Message
			if msg == nil {
				continue
			}
			if msg.Deleted != nil && msg.Deleted.ContentPurged {
				continue
			}
			score := scoreMessage(msg, terms, latest)
			if score <= 0 {
				continue
			}
			out = append(out, Result{
				MessageID:    msg.ID,
				EventIndex:   w.Index,
				MessageIndex: msg.MessageIndex,
				Score:        score,
			})
		}
		start = page[len(page)-1].Index + 1
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].MessageIndex > out[j].MessageIndex
	})
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func splitTerms(s string) []string {
	var out []string
	for _, t := range strings.Fields(s) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// scoreMessage sums per-term, per-field scores. Each field score is the
// field weight times the match grade, boosted for short fields (a hit
// in a short field is worth more than the same hit buried in a long
// one) and for recency.
func scoreMessage(msg *models.Message, terms []string, latest types.MessageIndex) float64 {
	var total float64
	for _, term := range terms {
		if t := msg.Content.Text; t != nil {
			total += fieldScore(t.Text, term, weightText)
		}
		if f := msg.Content.File; f != nil {
			total += fieldScore(f.Name, term, weightFile)
			total += fieldScore(f.Caption, term, weightCaption)
		}
		if p := msg.Content.Proposal; p != nil {
			total += fieldScore(p.Title, term, weightText)
			total += fieldScore(p.Summary, term, weightCaption)
		}
	}
	if total <= 0 {
		return 0
	}
	return total * recencyBoost(msg.MessageIndex, latest)
}

// fieldScore grades how term matches field: prefix beats case-sensitive
// substring beats case-insensitive substring.
func fieldScore(field, term string, weight float64) float64 {
	if field == "" || term == "" {
		return 0
	}
	var grade float64
	switch {
	case strings.HasPrefix(field, term):
		grade = matchPrefix
	case strings.Contains(field, term):
		grade = matchExact
	case strings.Contains(strings.ToLower(field), strings.ToLower(term)):
		grade = matchInsensitive
	default:
		return 0
	}
	return weight * grade * lengthBoost(field, term)
}

// lengthBoost scales by the fraction of the field the term covers, so a
// term matching most of a short field outranks the same term inside a
// long paragraph. Always in (1, 2].
func lengthBoost(field, term string) float64 {
	frac := float64(len(term)) / float64(len(field))
	if frac > 1 {
		frac = 1
	}
	return 1 + frac
}

// recencyBoost scales by the message's position in the log. In (1, 2];
// the latest message gets the full boost.
func recencyBoost(mi, latest types.MessageIndex) float64 {
	if latest == 0 {
		return 1
	}
	return 1 + float64(mi)/float64(latest)
}
