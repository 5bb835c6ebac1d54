package sentiment

import (
	"errors"
	"strings"

	"github.com/fhagen/clientpulse/internal/ai"
	"github.com/fhagen/clientpulse/internal/store"
)

// localInputLimit bounds the text fed to the local classifier
const localInputLimit = 512

// Weighted polarity lexicon for the local classification path. Deliberately
// small: the local path exists to keep obvious cases off the AI service, not
// to compete with it.
var positiveTerms = map[string]float64{
	"great": 2, "excellent": 3, "good": 1, "happy": 2, "pleased": 2,
	"thanks": 1, "thank": 1, "appreciate": 2, "love": 3, "perfect": 3,
	"helpful": 2, "resolved": 2, "awesome": 3, "fantastic": 3,
	"satisfied": 2, "smooth": 1, "impressed": 2, "wonderful": 3,
	"delighted": 3, "outstanding": 3,
}

var negativeTerms = map[string]float64{
	"bad": 1, "poor": 2, "terrible": 3, "awful": 3, "unhappy": 2,
	"disappointed": 2, "frustrated": 3, "angry": 3, "unacceptable": 3,
	"cancel": 2, "cancellation": 2, "refund": 2, "broken": 2, "fails": 2,
	"failure": 2, "slow": 1, "delay": 1, "delayed": 2, "escalate": 2,
	"complaint": 2, "worst": 3, "useless": 3, "leaving": 2, "churn": 2,
	"issue": 1, "problem": 1,
}

// Negation flips the polarity of the following term
var negations = map[string]bool{
	"not": true, "no": true, "never": true, "isnt": true, "wasnt": true,
	"dont": true, "doesnt": true, "didnt": true, "cant": true, "wont": true,
}

// LocalClassifier scores text against the embedded polarity lexicon.
// The zero value is usable.
type LocalClassifier struct{}

// ErrNoEvidence is returned when the text contains no lexicon terms; the
// pipeline falls back to the remote path in that case.
var ErrNoEvidence = errors.New("no lexicon evidence in text")

// Classify scores the first localInputLimit characters of text. Confidence
// scales with how much lexicon evidence was found, independent of polarity.
// Returns ErrNoEvidence when the text matches nothing in the lexicon.
func (LocalClassifier) Classify(text string) (*ai.Classification, error) {
	if len(text) > localInputLimit {
		text = text[:localInputLimit]
	}

	tokens := tokenize(text)

	var pos, neg float64
	var matched int
	negated := false
	for _, tok := range tokens {
		if negations[tok] {
			negated = true
			continue
		}

		if w, ok := positiveTerms[tok]; ok {
			matched++
			if negated {
				neg += w
			} else {
				pos += w
			}
		} else if w, ok := negativeTerms[tok]; ok {
			matched++
			if negated {
				pos += w
			} else {
				neg += w
			}
		}
		negated = false
	}

	total := pos + neg
	var score float64
	if total > 0 {
		score = (pos - neg) / total
	}

	label := store.LabelNeutral
	switch {
	case score > 0.1:
		label = store.LabelPositive
	case score < -0.1:
		label = store.LabelNegative
	}

	if matched == 0 {
		return nil, ErrNoEvidence
	}

	// More lexicon hits means more evidence; cap well below certainty
	confidence := 0.3 + 0.06*float64(matched)
	if confidence > 0.85 {
		confidence = 0.85
	}

	return &ai.Classification{Score: score, Label: label, Confidence: confidence}, nil
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})
}
