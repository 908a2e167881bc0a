package similarity

import (
	"github.com/sells-group/vcf-dupe/internal/config"
)

// Classification is the match decision for a scored pair.
type Classification int

// Bands, lowest first.
const (
	Distinct Classification = iota
	PossibleDuplicate
	AutoMergeCandidate
)

func (c Classification) String() string {
	switch c {
	case Distinct:
		return "distinct"
	case PossibleDuplicate:
		return "possible_duplicate"
	case AutoMergeCandidate:
		return "auto_merge_candidate"
	default:
		return "unknown"
	}
}

// MarshalText renders the classification by name in reports.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Classifier maps a score onto the three bands. Each band includes its lower
// bound.
type Classifier struct {
	similarity float64
	autoMerge  float64
}

// NewClassifier validates the thresholds and returns a Classifier. It fails
// with a *config.ConfigurationError unless
// 0 <= similarity_threshold < auto_merge_threshold <= 1.
func NewClassifier(cfg config.Config) (*Classifier, error) {
	if err := config.ValidateThresholds(cfg.SimilarityThreshold, cfg.AutoMergeThreshold); err != nil {
		return nil, err
	}
	return &Classifier{similarity: cfg.SimilarityThreshold, autoMerge: cfg.AutoMergeThreshold}, nil
}

// Classify returns the band for score.
func (c *Classifier) Classify(score float64) Classification {
	switch {
	case score >= c.autoMerge:
		return AutoMergeCandidate
	case score >= c.similarity:
		return PossibleDuplicate
	default:
		return Distinct
	}
}

// Thresholds returns the similarity and auto-merge thresholds.
func (c *Classifier) Thresholds() (similarity, autoMerge float64) {
	return c.similarity, c.autoMerge
}
