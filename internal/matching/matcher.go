package matching

import (
	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/records"
)

// Pair is a treatment record matched to the control record it claimed.
type Pair struct {
	TreatmentURL string
	ControlURL   string
	Score        float64
}

// Result is the outcome of one matching run.
type Result struct {
	Pairs []Pair
	// Controls holds the claimed control records, in pair order.
	Controls []records.PullRequestRecord
	// Unmatched holds treatment URLs that got no pair, in input order.
	Unmatched []string
}

// MatchedURLs returns the treatment URLs that got a pair, in pair order.
func (r Result) MatchedURLs() []string {
	urls := make([]string, 0, len(r.Pairs))
	for _, p := range r.Pairs {
		urls = append(urls, p.TreatmentURL)
	}
	return urls
}

// Matcher pairs treatment records with control records from the same repository.
type Matcher struct {
	weights Weights
	log     logging.Logger
}

type Option func(*Matcher)

func WithWeights(w Weights) Option {
	return func(m *Matcher) { m.weights = w }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Matcher) { m.log = l }
}

func New(opts ...Option) *Matcher {
	m := &Matcher{weights: DefaultWeights, log: logging.Discard()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// claims is the set of control URLs already taken during one Match call.
type claims map[string]struct{}

func (c claims) taken(url string) bool {
	_, ok := c[url]
	return ok
}

func (c claims) claim(url string) { c[url] = struct{}{} }

// Match walks treatment in input order and gives each record the best unclaimed
// control record of its repository. Earlier treatment records claim first, so
// reordering the input can change the pairing. Ties go to the candidate that
// appears first in the control input.
func (m *Matcher) Match(treatment, control []records.PullRequestRecord) Result {
	byRepo := groupByRepo(control)
	claimed := claims{}
	matched := make(map[string]bool, len(treatment))

	var res Result
	for _, t := range treatment {
		c, score, ok := m.best(t, byRepo[t.RepoName], claimed)
		if !ok {
			m.log.Debug("no eligible control", "url", t.URL, "repo", t.RepoName, "candidates", len(byRepo[t.RepoName]))
			continue
		}
		claimed.claim(c.URL)
		matched[t.URL] = true
		res.Pairs = append(res.Pairs, Pair{TreatmentURL: t.URL, ControlURL: c.URL, Score: score})
		res.Controls = append(res.Controls, c)
	}
	res.Unmatched = unmatchedURLs(treatment, matched)

	m.log.Info("matching complete",
		"treatment", len(treatment),
		"control", len(control),
		"repos", len(byRepo),
		"pairs", len(res.Pairs),
		"unmatched", len(res.Unmatched),
	)
	return res
}

func (m *Matcher) best(t records.PullRequestRecord, candidates []records.PullRequestRecord, claimed claims) (records.PullRequestRecord, float64, bool) {
	var (
		chosen    records.PullRequestRecord
		bestScore float64
		found     bool
	)
	tv := FeatureVector(t)
	for _, c := range candidates {
		if claimed.taken(c.URL) {
			continue
		}
		score := Similarity(tv, FeatureVectorAgainst(c, t.Author), m.weights)
		if !found || score > bestScore {
			chosen, bestScore, found = c, score, true
		}
	}
	return chosen, bestScore, found
}

func groupByRepo(recs []records.PullRequestRecord) map[string][]records.PullRequestRecord {
	groups := make(map[string][]records.PullRequestRecord)
	for _, rec := range recs {
		groups[rec.RepoName] = append(groups[rec.RepoName], rec)
	}
	return groups
}

func unmatchedURLs(treatment []records.PullRequestRecord, matched map[string]bool) []string {
	var out []string
	seen := make(map[string]bool, len(treatment))
	for _, t := range treatment {
		if matched[t.URL] || seen[t.URL] {
			continue
		}
		seen[t.URL] = true
		out = append(out, t.URL)
	}
	return out
}

// PairRef names a previously matched pair by URL.
type PairRef struct {
	TreatmentURL string
	ControlURL   string
}

// Rescore recomputes the score of existing pairs. Pairs referring to a URL missing
// from either population are skipped.
func (m *Matcher) Rescore(refs []PairRef, treatment, control []records.PullRequestRecord) []Pair {
	tByURL := indexByURL(treatment)
	cByURL := indexByURL(control)

	pairs := make([]Pair, 0, len(refs))
	for _, ref := range refs {
		t, okT := tByURL[ref.TreatmentURL]
		c, okC := cByURL[ref.ControlURL]
		if !okT || !okC {
			m.log.Info("skipping pair with unknown url", "treatment", ref.TreatmentURL, "control", ref.ControlURL,
				"treatment_found", okT, "control_found", okC)
			continue
		}
		pairs = append(pairs, Pair{TreatmentURL: t.URL, ControlURL: c.URL, Score: Score(t, c, m.weights)})
	}
	return pairs
}

func indexByURL(recs []records.PullRequestRecord) map[string]records.PullRequestRecord {
	idx := make(map[string]records.PullRequestRecord, len(recs))
	for _, rec := range recs {
		if _, dup := idx[rec.URL]; !dup {
			idx[rec.URL] = rec
		}
	}
	return idx
}
