package dialogue

import (
	"time"

	"github.com/torosent/dialogfire/internal/chat"
)

// SessionStats is the record of one simulated dialogue. It is owned by the
// goroutine running the session and handed over by value once finished.
type SessionStats struct {
	SessionID  int           `json:"dialog_id"`
	UserID     string        `json:"user_id"`
	Category   chat.Category `json:"issue_id"`
	DialogueID string        `json:"dialogue_id,omitempty"`

	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration"`

	ResponseTimes    []float64 `json:"response_times"`
	Errors           []string  `json:"errors"`
	MessagesSent     int       `json:"messages_sent"`
	MessagesReceived int       `json:"messages_received"`

	MinResponseTime float64 `json:"min_response_time,omitempty"`
	AvgResponseTime float64 `json:"avg_response_time,omitempty"`
	MaxResponseTime float64 `json:"max_response_time,omitempty"`

	// TokenCounts holds the word count of every assistant reply.
	TokenCounts []int   `json:"token_counts,omitempty"`
	MinTokens   int     `json:"min_tokens,omitempty"`
	AvgTokens   float64 `json:"avg_tokens,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	Transcript []chat.Message `json:"full_dialog,omitempty"`

	// Err is set when the session was aborted before its last turn.
	Err error `json:"-"`
}

// Failed reports whether the session aborted.
func (s SessionStats) Failed() bool { return s.Err != nil }

func (s *SessionStats) finish(end time.Time) {
	s.EndTime = end
	s.DurationSeconds = end.Sub(s.StartTime).Seconds()

	if n := len(s.ResponseTimes); n > 0 {
		lo, hi, sum := s.ResponseTimes[0], s.ResponseTimes[0], 0.0
		for _, v := range s.ResponseTimes {
			lo = min(lo, v)
			hi = max(hi, v)
			sum += v
		}
		s.MinResponseTime, s.MaxResponseTime = lo, hi
		s.AvgResponseTime = sum / float64(n)
	}

	if n := len(s.TokenCounts); n > 0 {
		lo, hi, sum := s.TokenCounts[0], s.TokenCounts[0], 0
		for _, v := range s.TokenCounts {
			lo = min(lo, v)
			hi = max(hi, v)
			sum += v
		}
		s.MinTokens, s.MaxTokens = lo, hi
		s.AvgTokens = float64(sum) / float64(n)
	}
}
