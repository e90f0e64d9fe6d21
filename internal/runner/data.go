package runner

import (
	"time"

	"github.com/torosent/dialogfire/internal/chat"
	"github.com/torosent/dialogfire/internal/dialogue"
)

// Test names. They prefix the run directories and key the suite summary.
const (
	TestConcurrent = "concurrent_dialogs"
	TestResponse   = "response_time"
	TestLong       = "long_dialogs"
)

// Request statuses of the response time run.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
	StatusError   = "error"
)

// ConcurrentData is the payload of a concurrent dialogues run.
type ConcurrentData struct {
	NumUsers           int                     `json:"num_users"`
	MessagesPerDialog  int                     `json:"messages_per_dialog"`
	ConcurrentRequests int                     `json:"concurrent_requests"`
	MessageDelay       float64                 `json:"message_delay"`
	MaxTestDuration    float64                 `json:"max_test_duration"`
	UserDialogs        []dialogue.SessionStats `json:"user_dialogs"`
	ActualTestDuration float64                 `json:"actual_test_duration"`
}

// RequestStats is the record of one request of the response time run.
type RequestStats struct {
	RequestID      int           `json:"request_id"`
	UserID         string        `json:"user_id"`
	Category       chat.Category `json:"issue_id"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	ResponseTimeMs *float64      `json:"response_time"`
	Status         string        `json:"status"`
	Error          string        `json:"error,omitempty"`
}

// ResponseData is the payload of a response time run.
type ResponseData struct {
	TotalRequests      int            `json:"total_requests"`
	BatchSize          int            `json:"batch_size"`
	RampUpSeconds      float64        `json:"ramp_up_seconds"`
	RequestTimeout     float64        `json:"request_timeout"`
	RequestStats       []RequestStats `json:"request_stats"`
	ActualTestDuration float64        `json:"actual_test_duration"`
	RequestsPerSecond  float64        `json:"requests_per_second"`
}

// LongData is the payload of a long dialogues run.
type LongData struct {
	NumDialogs         int                     `json:"num_dialogs"`
	MessagesPerDialog  int                     `json:"messages_per_dialog"`
	MessageDelay       float64                 `json:"message_delay"`
	ContextWindow      int                     `json:"context_window"`
	DialogStats        []dialogue.SessionStats `json:"dialog_stats"`
	ActualTestDuration float64                 `json:"actual_test_duration"`
	Transcripts        []string                `json:"transcripts,omitempty"`
}
