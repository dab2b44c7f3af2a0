package patterns

import (
	"sort"
	"strings"
	"unicode"

	"pattern-scanner/internal/analysis"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// Registry maps detector identifiers and pattern names to classifiers. It is
// built once and never modified, so it is safe for concurrent use.
type Registry struct {
	order    []string
	byID     map[string]Classifier
	synonyms map[string]string
}

// patternSynonyms lists extra human-readable names per detector identifier.
// Every pattern type name a classifier emits is also registered.
var patternSynonyms = map[string][]string{
	"vcp":            {"volatility contraction", "volatility contraction pattern", "minervini"},
	"cup_handle":     {"cup and handle", "cup with handle", "cup", "rounding bottom", "saucer"},
	"triangle":       {"triangles", "ascending triangle", "descending triangle", "symmetrical triangle", "symmetric triangle"},
	"wedge":          {"wedges", "rising wedge", "falling wedge"},
	"channel":        {"channels", "ascending channel", "descending channel", "up channel", "down channel", "horizontal channel", "sideways channel", "rectangle"},
	"head_shoulders": {"head and shoulders", "h&s", "hs", "inverse head and shoulders", "inverse h&s", "ihs"},
	"double":         {"double top", "double bottom", "triple top", "triple bottom", "m top", "w bottom"},
	"ma_pullback":    {"moving average pullback", "pullback", "50 day pullback", "sma pullback"},
}

// NewRegistry constructs every classifier from cfg in catalogue order.
func NewRegistry(cfg Config) (*Registry, error) {
	vcp, err := NewVCPClassifier(cfg.VCP)
	if err != nil {
		return nil, errors.Wrap(err, "vcp")
	}
	cup, err := NewCupHandleClassifier(cfg.CupHandle)
	if err != nil {
		return nil, errors.Wrap(err, "cup_handle")
	}
	triangle, err := NewTriangleClassifier(cfg.Triangle)
	if err != nil {
		return nil, errors.Wrap(err, "triangle")
	}
	wedge, err := NewWedgeClassifier(cfg.Wedge)
	if err != nil {
		return nil, errors.Wrap(err, "wedge")
	}
	channel, err := NewChannelClassifier(cfg.Channel)
	if err != nil {
		return nil, errors.Wrap(err, "channel")
	}
	hs, err := NewHeadShouldersClassifier(cfg.HeadShoulders)
	if err != nil {
		return nil, errors.Wrap(err, "head_shoulders")
	}
	double, err := NewDoubleClassifier(cfg.Double)
	if err != nil {
		return nil, errors.Wrap(err, "double")
	}
	pullback, err := NewMAPullbackClassifier(cfg.MAPullback)
	if err != nil {
		return nil, errors.Wrap(err, "ma_pullback")
	}
	return NewRegistryFrom(vcp, cup, triangle, wedge, channel, hs, double, pullback), nil
}

// NewRegistryFrom builds a registry over the given classifiers. Later
// classifiers with a duplicate ID are ignored.
func NewRegistryFrom(classifiers ...Classifier) *Registry {
	r := &Registry{
		byID:     make(map[string]Classifier, len(classifiers)),
		synonyms: make(map[string]string),
	}
	for _, c := range classifiers {
		id := c.ID()
		if _, dup := r.byID[id]; dup {
			continue
		}
		r.order = append(r.order, id)
		r.byID[id] = c

		r.addSynonym(id, id)
		r.addSynonym(c.Name(), id)
		for _, pt := range c.Patterns() {
			r.addSynonym(string(pt), id)
		}
		for _, name := range patternSynonyms[id] {
			r.addSynonym(name, id)
		}
	}
	return r
}

func (r *Registry) addSynonym(name, id string) {
	key := normalizeName(name)
	if key == "" {
		return
	}
	if _, taken := r.synonyms[key]; !taken {
		r.synonyms[key] = id
	}
}

// normalizeName lowercases name and drops everything but letters and digits,
// so "Double Top", "double_top" and "DoubleTop" resolve alike.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IDs returns the detector identifiers in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Classifiers returns the classifiers in registration order.
func (r *Registry) Classifiers() []Classifier {
	out := make([]Classifier, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}

// Lookup returns the classifier registered under id.
func (r *Registry) Lookup(id string) (Classifier, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// LookupPattern resolves a detector identifier, pattern type or synonym.
func (r *Registry) LookupPattern(name string) (Classifier, bool) {
	if c, ok := r.byID[name]; ok {
		return c, true
	}
	id, ok := r.synonyms[normalizeName(name)]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

// Synonyms returns the normalized names that resolve to id, sorted.
func (r *Registry) Synonyms(id string) []string {
	var names []string
	for name, owner := range r.synonyms {
		if owner == id {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Find runs the detector resolved from name on candles.
func (r *Registry) Find(name string, candles []models.Candle, timeframe, symbol string) ([]analysis.Candidate, error) {
	c, ok := r.LookupPattern(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrDetectorNotFound, "%q", name)
	}
	return c.Find(candles, timeframe, symbol), nil
}

// RunAll runs every classifier sequentially in registration order and
// concatenates their candidates.
func (r *Registry) RunAll(candles []models.Candle, timeframe, symbol string) []analysis.Candidate {
	var out []analysis.Candidate
	for _, id := range r.order {
		out = append(out, r.byID[id].Find(candles, timeframe, symbol)...)
	}
	return out
}
