package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/dialogfire/internal/dialogue"
	"github.com/torosent/dialogfire/internal/metrics"
)

// RunLong runs opt.Dialogs long sessions concurrently. Every turn is a plain
// phrase. Failed turns are replaced by a placeholder reply so every session
// reaches its last turn.
// With SaveFull, transcripts are written to the run directory before the
// summary and left out of it.
func (r *Runner) RunLong(ctx context.Context, opt LongOptions) (metrics.RunSummary, error) {
	opt.normalize()
	rn, err := r.begin(TestLong)
	if err != nil {
		return metrics.RunSummary{}, err
	}
	rn.logger.Info("starting long dialogues test",
		zap.Int("dialogs", opt.Dialogs),
		zap.Int("messages_per_dialog", opt.Messages),
		zap.Int("window", opt.Window),
	)

	sim := r.simulator(rn)
	sim.Delay = opt.Delay
	sim.Window = opt.Window
	sim.Fallback = dialogue.DefaultFallback
	sim.PlainTurns = true
	sim.KeepTranscript = opt.SaveFull

	specs := make([]dialogue.SessionSpec, opt.Dialogs)
	for i := range specs {
		specs[i] = r.sessionSpec(i+1, r.randomCategory(), opt.Messages)
	}
	stats := make([]dialogue.SessionStats, opt.Dialogs)

	start := time.Now()
	recovered := fanOut(ctx, opt.Dialogs, 0, func(ctx context.Context, i int) {
		stats[i] = sim.Run(ctx, specs[i])
		rn.logger.Info("dialog completed",
			zap.Int("dialog", specs[i].ID),
			zap.Int("sent", stats[i].MessagesSent),
			zap.Int("received", stats[i].MessagesReceived))
	})
	elapsed := time.Since(start)

	var saveErrs []error
	var transcripts []string
	dialogs := make([]dialogue.SessionStats, 0, opt.Dialogs)
	for i, rec := range recovered {
		if rec != nil {
			rn.recordPanic("dialog", i+1, rec)
			continue
		}
		s := stats[i]
		if opt.SaveFull && len(s.Transcript) > 0 {
			path, err := rn.dir.SaveTranscript(s.SessionID, s.Transcript)
			if err != nil {
				rn.logger.Error("save transcript", zap.Int("dialog", s.SessionID), zap.Error(err))
				saveErrs = append(saveErrs, fmt.Errorf("dialog %d transcript: %w", s.SessionID, err))
			} else {
				transcripts = append(transcripts, path)
			}
		}
		s.Transcript = nil
		dialogs = append(dialogs, s)
	}

	rn.collector.SetDetails(TestLong, LongData{
		NumDialogs:         opt.Dialogs,
		MessagesPerDialog:  opt.Messages,
		MessageDelay:       opt.Delay.Seconds(),
		ContextWindow:      opt.Window,
		DialogStats:        dialogs,
		ActualTestDuration: elapsed.Seconds(),
		Transcripts:        transcripts,
	})
	summary, err := rn.finish()
	return summary, errors.Join(err, errors.Join(saveErrs...))
}
