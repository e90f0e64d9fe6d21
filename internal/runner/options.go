package runner

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/dialogfire/internal/chat"
	"github.com/torosent/dialogfire/internal/dialogue"
	"github.com/torosent/dialogfire/internal/metrics"
)

// DefaultResultsDir is where run directories are created when Options leaves
// ResultsDir empty.
const DefaultResultsDir = "result_tests"

// Options configure the Runner.
type Options struct {
	Client     chat.Client         // chat collaborator (required)
	Prompts    chat.PromptSet      // dialogue openings (defaults to the built-in set)
	Bank       dialogue.PhraseBank // user phrases (defaults to the built-in bank)
	ResultsDir string              // root of the run directories
	Seed       int64               // phrase and user id seed (0 means time based)
	Logger     *zap.Logger
	// Watch is called with the collector of every run once it starts. The
	// returned function is called when the run's units have all finished.
	Watch func(test string, c *metrics.Collector) (stop func())
	Now   func() time.Time
}

func (o *Options) normalize() {
	if o.ResultsDir == "" {
		o.ResultsDir = DefaultResultsDir
	}
	if len(o.Prompts) == 0 {
		o.Prompts = chat.DefaultPrompts()
	}
	if len(o.Bank) == 0 {
		o.Bank = dialogue.DefaultBank()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
}

// ConcurrentOptions configure RunConcurrent.
type ConcurrentOptions struct {
	Users    int           // sessions launched at once
	Messages int           // user turns per session
	Delay    time.Duration // pause between turns
	// ConcurrentRequests is recorded with the results only.
	ConcurrentRequests int
	// MaxInFlight caps the sessions running at the same time (0 means all).
	MaxInFlight int
	// Duration is a hard deadline for the whole run (0 means none).
	Duration time.Duration
}

func (o *ConcurrentOptions) normalize() {
	o.Users = max(o.Users, 0)
	o.Messages = max(o.Messages, 0)
	o.MaxInFlight = max(o.MaxInFlight, 0)
}

// ResponseOptions configure RunResponseTime.
type ResponseOptions struct {
	Total     int           // single-turn requests in the run
	BatchSize int           // requests launched together
	RampUp    time.Duration // window the batches are spread over
	Timeout   time.Duration // deadline of each request (0 means none)
}

func (o *ResponseOptions) normalize() {
	o.Total = max(o.Total, 0)
	if o.BatchSize <= 0 {
		o.BatchSize = 1
	}
}

// Batches returns the number of batches, ceil(Total / BatchSize).
func (o ResponseOptions) Batches() int {
	if o.Total <= 0 || o.BatchSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(o.Total) / float64(o.BatchSize)))
}

// BatchDelay returns the pause between two batches, RampUp / Batches.
func (o ResponseOptions) BatchDelay() time.Duration {
	n := o.Batches()
	if n == 0 || o.RampUp <= 0 {
		return 0
	}
	return o.RampUp / time.Duration(n)
}

// LongOptions configure RunLong.
type LongOptions struct {
	Dialogs  int           // concurrent sessions
	Messages int           // user turns per session
	Delay    time.Duration // pause between turns
	Window   int           // history sent with each turn (0 means all)
	SaveFull bool          // keep and persist full transcripts
}

func (o *LongOptions) normalize() {
	o.Dialogs = max(o.Dialogs, 0)
	o.Messages = max(o.Messages, 0)
	o.Window = max(o.Window, 0)
}
