package core

import (
	"regexp"
	"strings"
)

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentRisk     = "risk"
)

// Crisis phrases are matched on word boundaries so that e.g. "suicide"
// inside a longer word does not trigger. This is a coarse keyword
// trigger, not a clinical assessment: false negatives are expected and
// accepted, the phrase list only catches explicit wording.
var crisisPhrases = []string{
	"kill myself", "suicide", "i want to die", "end my life", "worthless",
	"i can't go on", "hurt myself", "i'm done",
}

var crisisPatterns []*regexp.Regexp

func init() {
	for _, phrase := range crisisPhrases {
		crisisPatterns = append(crisisPatterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(phrase)+`\b`))
	}
}

// DetectRisk reports whether the text contains crisis language. Pure
// function, no side effects.
func DetectRisk(text string) bool {
	txt := strings.ToLower(text)
	for _, pattern := range crisisPatterns {
		if pattern.MatchString(txt) {
			return true
		}
	}
	return false
}

var (
	negativeWords = []string{"sad", "tired", "stressed", "anxious", "angry", "depressed"}
	positiveWords = []string{"happy", "good", "great", "relieved", "better", "okay"}
)

// DetectSentiment classifies text as positive, negative or neutral.
// Negative takes priority when both lists match.
func DetectSentiment(text string) string {
	txt := strings.ToLower(text)
	for _, w := range negativeWords {
		if strings.Contains(txt, w) {
			return SentimentNegative
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(txt, w) {
			return SentimentPositive
		}
	}
	return SentimentNeutral
}

// Negative-affect labels that route a message down the reframe path.
// Broader than the classifier's own output so finer labels from other
// sources still get reframed.
var negativeAffectLabels = map[string]bool{
	SentimentNegative: true,
	"sad":             true,
	"depressed":       true,
	"angry":           true,
	"anxious":         true,
}

func isNegativeAffect(sentiment string) bool {
	return negativeAffectLabels[strings.ToLower(sentiment)]
}
