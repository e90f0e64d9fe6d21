// Package dialogue simulates users talking to the support bot.
//
// A [Simulator] drives one multi-turn session against a [chat.Client]:
// it opens the dialogue, sends synthetic user turns drawn from a
// [PhraseBank], and records the latency of every call into a [Recorder]
// shared by all sessions of a run.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/dialogfire/internal/chat"
)

// DefaultFallback is the placeholder reply used in fallback mode.
const DefaultFallback = "Извините, произошла техническая ошибка. Продолжим нашу беседу?"

// Recorder receives the latency samples and error records of sessions.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordLatency(ms float64)
	RecordError(msg string)
}

// SessionSpec describes one session.
type SessionSpec struct {
	ID       int
	UserID   string
	Category chat.Category
	Messages int
	// Rand drives phrase selection. A nil Rand is seeded from the clock.
	Rand *rand.Rand
}

// Simulator runs sessions. One Simulator may run many sessions concurrently;
// all per-session state lives in Run.
type Simulator struct {
	Client   chat.Client
	Recorder Recorder
	Prompts  chat.PromptSet
	Bank     PhraseBank
	// Delay is the pause between turns.
	Delay time.Duration
	// Window bounds the history sent with each turn; 0 sends all of it.
	Window int
	// Fallback, when set, is appended as the assistant turn after a failed
	// call so the dialogue can go on.
	Fallback string
	// PlainTurns draws every turn as a fresh phrase, without follow-up
	// clauses.
	PlainTurns     bool
	KeepTranscript bool
	Logger         *zap.Logger
	Now            func() time.Time
}

// Run simulates one session and returns its stats. Per-turn failures are
// recorded and the loop continues; a failed opening aborts the session.
func (s *Simulator) Run(ctx context.Context, spec SessionSpec) SessionStats {
	logger := s.logger().With(zap.Int("session", spec.ID), zap.String("user_id", spec.UserID))
	rnd := spec.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(s.now().UnixNano()))
	}

	stats := SessionStats{
		SessionID: spec.ID,
		UserID:    spec.UserID,
		Category:  spec.Category,
		StartTime: s.now(),
		Errors:    []string{},
	}
	defer func() { stats.finish(s.now()) }()

	start := time.Now()
	dialogueID, err := s.Client.StartDialogue(ctx, spec.Category, spec.UserID)
	s.observe(&stats, time.Since(start))
	if err != nil {
		stats.Err = fmt.Errorf("start dialogue: %w", err)
		s.fail(&stats, fmt.Sprintf("session %d: start dialogue for %s: %v", spec.ID, spec.UserID, err))
		logger.Warn("session aborted", zap.Error(err))
		return stats
	}
	stats.DialogueID = dialogueID
	logger = logger.With(zap.String("dialogue_id", dialogueID))

	history := s.prompts().Opening(spec.Category)
	stats.MessagesReceived++
	if s.KeepTranscript {
		stats.Transcript = append(stats.Transcript, history...)
	}

	turns := s.turns(spec, rnd)
	for i, text := range turns {
		if ctx.Err() != nil {
			stats.Err = ctx.Err()
			logger.Info("session interrupted", zap.Int("turn", i+1))
			return stats
		}

		user := chat.Message{Role: chat.RoleUser, Content: text}
		history = append(history, user)
		s.keep(&stats, user)
		stats.MessagesSent++

		start := time.Now()
		reply, err := s.Client.Complete(ctx, window(history, s.Window), spec.UserID, spec.Category)
		s.observe(&stats, time.Since(start))

		switch {
		case errors.Is(err, chat.ErrEmptyReply):
			s.fail(&stats, fmt.Sprintf("session %d turn %d: empty reply for %s", spec.ID, i+1, spec.UserID))
		case err != nil:
			s.fail(&stats, fmt.Sprintf("session %d turn %d: %v", spec.ID, i+1, err))
			if s.Fallback != "" {
				placeholder := chat.Message{Role: chat.RoleAssistant, Content: s.Fallback}
				history = append(history, placeholder)
				s.keep(&stats, placeholder)
			}
		default:
			assistant := chat.Message{Role: chat.RoleAssistant, Content: reply}
			history = append(history, assistant)
			s.keep(&stats, assistant)
			stats.MessagesReceived++
			stats.TokenCounts = append(stats.TokenCounts, len(strings.Fields(reply)))
		}

		if (i+1)%10 == 0 {
			logger.Info("session progress", zap.Int("turn", i+1), zap.Int("of", len(turns)))
		}
		if i < len(turns)-1 && !sleep(ctx, s.Delay) {
			stats.Err = ctx.Err()
			return stats
		}
	}

	logger.Debug("session completed",
		zap.Int("sent", stats.MessagesSent),
		zap.Int("received", stats.MessagesReceived),
		zap.Int("errors", len(stats.Errors)))
	return stats
}

func (s *Simulator) observe(stats *SessionStats, elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)
	stats.ResponseTimes = append(stats.ResponseTimes, ms)
	if s.Recorder != nil {
		s.Recorder.RecordLatency(ms)
	}
}

func (s *Simulator) fail(stats *SessionStats, msg string) {
	stats.Errors = append(stats.Errors, msg)
	if s.Recorder != nil {
		s.Recorder.RecordError(msg)
	}
}

func (s *Simulator) keep(stats *SessionStats, m chat.Message) {
	if s.KeepTranscript {
		stats.Transcript = append(stats.Transcript, m)
	}
}

func (s *Simulator) turns(spec SessionSpec, rnd *rand.Rand) []string {
	if !s.PlainTurns {
		return s.bank().Generate(spec.Category, spec.Messages, rnd)
	}
	turns := make([]string, 0, max(spec.Messages, 0))
	for range spec.Messages {
		turns = append(turns, s.bank().Generate(spec.Category, 1, rnd)...)
	}
	return turns
}

func (s *Simulator) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Simulator) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Simulator) prompts() chat.PromptSet {
	if len(s.Prompts) == 0 {
		return chat.DefaultPrompts()
	}
	return s.Prompts
}

func (s *Simulator) bank() PhraseBank {
	if len(s.Bank) == 0 {
		return defaultBank
	}
	return s.Bank
}

// window returns the last n messages of history, or all of it when n <= 0.
func window(history []chat.Message, n int) []chat.Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
