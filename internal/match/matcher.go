// Package match decides whether an extraction record refers to an existing
// Application or starts a new one. Matching compares (employer, role)
// identity signatures with fuzzy tolerance for abbreviations, legal-suffix
// variants and minor typos.
package match

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/applytrack/internal/normalize"
	"github.com/jonathan/applytrack/internal/types"
)

// Config holds the matching policy knobs. The thresholds are tunable
// configuration, not derived constants; matching quality is domain-sensitive
// and the defaults are a starting point for empirical tuning.
type Config struct {
	// HighThreshold: scores at or above this are a unique match.
	HighThreshold float64 `json:"high_threshold"`
	// LowThreshold: scores below this for all candidates mean a new
	// Application.
	LowThreshold float64 `json:"low_threshold"`
	// Margin: two candidates within this distance of each other above
	// LowThreshold make the decision ambiguous.
	Margin float64 `json:"margin"`
	// EmployerWeight and RoleWeight combine the two signature scores.
	EmployerWeight float64 `json:"employer_weight"`
	RoleWeight     float64 `json:"role_weight"`
	// RoleSynonyms maps role phrasings to a shared family name, e.g.
	// "swe" -> "software engineer".
	RoleSynonyms map[string]string `json:"role_synonyms,omitempty"`
}

// DefaultConfig returns the baseline matching policy.
func DefaultConfig() Config {
	return Config{
		HighThreshold:  0.85,
		LowThreshold:   0.60,
		Margin:         0.10,
		EmployerWeight: 0.70,
		RoleWeight:     0.30,
		RoleSynonyms:   defaultRoleSynonyms(),
	}
}

func defaultRoleSynonyms() map[string]string {
	return map[string]string{
		"swe":                "software engineer",
		"software developer": "software engineer",
		"softwareentwickler": "software engineer",
		"backend developer":  "backend engineer",
		"back-end developer": "backend engineer",
		"back-end engineer":  "backend engineer",
		"frontend developer": "frontend engineer",
		"front-end developer": "frontend engineer",
		"front-end engineer": "frontend engineer",
		"devops":             "devops engineer",
		"sre":                "site reliability engineer",
	}
}

// Decision is the outcome category of a match attempt.
type Decision int

const (
	// DecisionNew means no candidate reached the low threshold.
	DecisionNew Decision = iota
	// DecisionMatch means exactly one candidate reached the high
	// threshold, or led the field by more than the margin.
	DecisionMatch
	// DecisionLowConfidence is a match in the [low, high) band with a
	// clear leader; it merges, but the merge is recorded as low-confidence.
	DecisionLowConfidence
	// DecisionAmbiguous means multiple candidates sit within the margin of
	// each other; a human has to pick.
	DecisionAmbiguous
)

// Scored is one candidate Application with its similarity score.
type Scored struct {
	ApplicationID uuid.UUID
	Employer      string
	Role          string
	Score         float64
}

// Result carries the decision plus enough detail to act on it.
type Result struct {
	Decision      Decision
	ApplicationID uuid.UUID
	Score         float64
	Candidates    []Scored
}

// Matcher scores extraction records against existing Applications.
type Matcher struct {
	cfg Config
}

// New returns a Matcher with the given policy. Zero-valued fields fall back
// to the defaults so a partially specified config stays usable.
func New(cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.HighThreshold == 0 {
		cfg.HighThreshold = def.HighThreshold
	}
	if cfg.LowThreshold == 0 {
		cfg.LowThreshold = def.LowThreshold
	}
	if cfg.Margin == 0 {
		cfg.Margin = def.Margin
	}
	if cfg.EmployerWeight == 0 && cfg.RoleWeight == 0 {
		cfg.EmployerWeight = def.EmployerWeight
		cfg.RoleWeight = def.RoleWeight
	}
	if cfg.RoleSynonyms == nil {
		cfg.RoleSynonyms = def.RoleSynonyms
	}
	return &Matcher{cfg: cfg}
}

// Match scores the record against every existing Application and applies
// the decision policy. The candidate list in an ambiguous result is sorted
// by score descending, then by Application ID for stable output.
func (m *Matcher) Match(existing []*types.Application, rec types.ExtractionRecord) Result {
	var scored []Scored
	for _, app := range existing {
		s := m.Score(app, rec)
		if s >= m.cfg.LowThreshold {
			scored = append(scored, Scored{
				ApplicationID: app.ID,
				Employer:      app.EmployerDisplay(),
				Role:          app.RoleDisplay(),
				Score:         s,
			})
		}
	}
	if len(scored) == 0 {
		return Result{Decision: DecisionNew}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ApplicationID.String() < scored[j].ApplicationID.String()
	})

	best := scored[0]
	if len(scored) > 1 && scored[1].Score > best.Score-m.cfg.Margin {
		return Result{Decision: DecisionAmbiguous, Candidates: scored}
	}
	if best.Score >= m.cfg.HighThreshold {
		return Result{Decision: DecisionMatch, ApplicationID: best.ApplicationID, Score: best.Score}
	}
	// Band [low, high) with a clear leader: merge, flagged low-confidence.
	return Result{Decision: DecisionLowConfidence, ApplicationID: best.ApplicationID, Score: best.Score}
}

// roleConflictFloor: two explicitly named roles scoring below this are
// different positions, not spelling variants.
const roleConflictFloor = 0.4

// Score computes the combined signature similarity between a record and an
// Application. The employer side also checks every stored alias and keeps
// the best hit, so past spellings keep matching.
func (m *Matcher) Score(app *types.Application, rec types.ExtractionRecord) float64 {
	emp := nameSimilarity(app.Employer, rec.Employer)
	for _, variant := range app.EmployerVariants {
		if s := nameSimilarity(normalize.Company(variant.Value), rec.Employer); s > emp {
			emp = s
		}
	}
	role := m.roleSimilarity(app.Role, rec.Role)
	// Conflicting role titles mean a second application at the same
	// employer, no matter how well the employer names agree.
	if app.Role != "" && rec.Role != "" && role < roleConflictFloor {
		return emp * role
	}
	return m.cfg.EmployerWeight*emp + m.cfg.RoleWeight*role
}

// roleSimilarity compares role titles loosely: synonym families count as
// identical, and missing titles are treated as weak neutral evidence rather
// than a mismatch.
func (m *Matcher) roleSimilarity(a, b string) float64 {
	a, b = m.family(a), m.family(b)
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0.5
	}
	return nameSimilarity(a, b)
}

func (m *Matcher) family(role string) string {
	key := strings.TrimSpace(role)
	if fam, ok := m.cfg.RoleSynonyms[key]; ok {
		return fam
	}
	return key
}
