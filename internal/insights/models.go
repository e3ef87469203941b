package insights

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("insights: analytics not found")
	ErrNoTranscript = errors.New("insights: call has no transcript")
)

// KeywordCategory is the closed set of keyword library categories.
type KeywordCategory string

const (
	CategoryCompliance KeywordCategory = "compliance"
	CategoryProhibited KeywordCategory = "prohibited"
	CategoryEmpathy    KeywordCategory = "empathy"
	CategoryEscalation KeywordCategory = "escalation"
	CategorySales      KeywordCategory = "sales"
	CategoryClosing    KeywordCategory = "closing"
	CategoryGreeting   KeywordCategory = "greeting"
	CategoryCustom     KeywordCategory = "custom"
)

func (c KeywordCategory) Valid() bool {
	switch c {
	case CategoryCompliance, CategoryProhibited, CategoryEmpathy, CategoryEscalation,
		CategorySales, CategoryClosing, CategoryGreeting, CategoryCustom:
		return true
	}
	return false
}

// KeywordEntry is one phrase to look for. Weight may be negative for phrases
// that should count against the agent. ExactMatch requires whole-word
// boundaries; otherwise substring occurrences count.
type KeywordEntry struct {
	Phrase     string `json:"phrase"`
	Weight     int    `json:"weight"`
	ExactMatch bool   `json:"exact_match"`
}

// KeywordLibrary groups entries under one category. Inactive libraries are
// skipped by the matcher.
type KeywordLibrary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category KeywordCategory `json:"category"`
	Active   bool            `json:"active"`
	Entries  []KeywordEntry  `json:"entries"`
}

// KeywordMatch records one phrase that occurred at least once.
type KeywordMatch struct {
	LibraryID string          `json:"library_id"`
	Category  KeywordCategory `json:"category"`
	Phrase    string          `json:"phrase"`
	Count     int             `json:"count"`
	Weight    int             `json:"weight"`
}

// KeywordSummary is the full matcher output: every matched phrase plus
// per-category occurrence totals.
type KeywordSummary struct {
	Matches        []KeywordMatch          `json:"matches"`
	CategoryCounts map[KeywordCategory]int `json:"category_counts"`
}

// SentimentLabel is the overall tone classification of a transcript.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
	SentimentMixed    SentimentLabel = "mixed"
)

// SentimentPoint is one entry of the per-turn sentiment timeline. Segment is
// the zero-based speaker-turn index within the transcript.
type SentimentPoint struct {
	Segment int            `json:"segment"`
	Label   SentimentLabel `json:"label"`
	Score   float64        `json:"score"`
}

// ScriptResult reports how much of an expected call script was covered.
type ScriptResult struct {
	Score   float64  `json:"score"`
	Matched []string `json:"matched"`
	Missed  []string `json:"missed"`
}

// TalkStats is arithmetic over timing metadata already present on the call.
// No audio analysis happens here.
type TalkStats struct {
	AgentTalkSeconds    int     `json:"agent_talk_seconds"`
	CustomerTalkSeconds int     `json:"customer_talk_seconds"`
	SilenceSeconds      int     `json:"silence_seconds"`
	TalkToListenRatio   float64 `json:"talk_to_listen_ratio"`
	DeadAirCount        int     `json:"dead_air_count"`
	InterruptionCount   int     `json:"interruption_count"`
}

// CallAnalytics is the persisted output of the conversation intelligence
// stage. It is produced independently of the audit report and its absence
// never blocks a call from reaching audited.
type CallAnalytics struct {
	ID                string           `json:"id"`
	CallID            string           `json:"call_id"`
	SentimentLabel    SentimentLabel   `json:"sentiment_label"`
	SentimentScore    float64          `json:"sentiment_score"`
	SentimentTimeline []SentimentPoint `json:"sentiment_timeline,omitempty"`
	Keywords          KeywordSummary   `json:"keywords"`
	Script            *ScriptResult    `json:"script,omitempty"`
	Talk              TalkStats        `json:"talk"`
	CreatedAt         time.Time        `json:"created_at"`
}
