package dialogue_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/dialogfire/internal/chat"
	"github.com/torosent/dialogfire/internal/dialogue"
	"github.com/torosent/dialogfire/internal/metrics"
)

// fakeClient answers every turn with reply unless the turn number (1-based)
// is listed in failures.
type fakeClient struct {
	mu        sync.Mutex
	startErr  error
	reply     string
	failures  map[int]error
	turn      int
	histories [][]chat.Message
}

func (f *fakeClient) StartDialogue(context.Context, chat.Category, string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return "dlg-1", nil
}

func (f *fakeClient) Complete(_ context.Context, messages []chat.Message, _ string, _ chat.Category) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turn++
	f.histories = append(f.histories, append([]chat.Message(nil), messages...))
	if err, ok := f.failures[f.turn]; ok {
		return "", err
	}
	return f.reply, nil
}

func newSimulator(client chat.Client, rec dialogue.Recorder) *dialogue.Simulator {
	return &dialogue.Simulator{Client: client, Recorder: rec}
}

func session(messages int) dialogue.SessionSpec {
	return dialogue.SessionSpec{
		ID:       1,
		UserID:   "test_user_1_1000",
		Category: chat.CategoryDepression,
		Messages: messages,
		Rand:     rand.New(rand.NewSource(5)),
	}
}

func TestRunHappyPath(t *testing.T) {
	client := &fakeClient{reply: "Расскажите подробнее об этом"}
	collector := metrics.NewCollector("t")
	sim := newSimulator(client, collector)

	stats := sim.Run(context.Background(), session(3))

	require.NoError(t, stats.Err)
	assert.Equal(t, "dlg-1", stats.DialogueID)
	assert.Len(t, stats.ResponseTimes, 4, "opening plus three turns")
	assert.Len(t, collector.Samples(), 4)
	assert.Empty(t, stats.Errors)
	assert.Equal(t, 3, stats.MessagesSent)
	assert.Equal(t, 4, stats.MessagesReceived)
	assert.Equal(t, []int{4, 4, 4}, stats.TokenCounts)
	assert.Equal(t, 4, stats.MinTokens)
	assert.Equal(t, 4, stats.MaxTokens)
	assert.InDelta(t, 4.0, stats.AvgTokens, 1e-9)
	assert.LessOrEqual(t, stats.MinResponseTime, stats.AvgResponseTime)
	assert.LessOrEqual(t, stats.AvgResponseTime, stats.MaxResponseTime)
	assert.False(t, stats.EndTime.Before(stats.StartTime))

	// system, greeting, then alternating user/assistant turns.
	last := client.histories[2]
	require.Len(t, last, 2+5)
	assert.Equal(t, chat.RoleSystem, last[0].Role)
	assert.Equal(t, chat.RoleAssistant, last[1].Role)
	assert.Equal(t, chat.RoleUser, last[6].Role)
}

func TestRunOpeningFailureAbortsSession(t *testing.T) {
	client := &fakeClient{startErr: errors.New("connection refused")}
	collector := metrics.NewCollector("t")

	stats := newSimulator(client, collector).Run(context.Background(), session(5))

	require.Error(t, stats.Err)
	assert.True(t, stats.Failed())
	assert.Len(t, stats.Errors, 1)
	assert.Len(t, collector.Errors(), 1)
	assert.Len(t, stats.ResponseTimes, 1)
	assert.Zero(t, client.turn)
	assert.Zero(t, stats.MessagesSent)
}

func TestRunTurnErrorContinuesWithoutPlaceholder(t *testing.T) {
	client := &fakeClient{reply: "ok", failures: map[int]error{2: errors.New("bad gateway")}}
	collector := metrics.NewCollector("t")

	stats := newSimulator(client, collector).Run(context.Background(), session(3))

	require.NoError(t, stats.Err)
	assert.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "turn 2")
	assert.Equal(t, 3, stats.MessagesSent)
	assert.Equal(t, 3, stats.MessagesReceived)

	// The failed user turn stays in history and no assistant reply follows it.
	third := client.histories[2]
	assert.Equal(t, chat.RoleUser, third[len(third)-2].Role)
	assert.Equal(t, chat.RoleUser, third[len(third)-1].Role)
}

func TestRunFallbackPlaceholder(t *testing.T) {
	client := &fakeClient{reply: "ok", failures: map[int]error{1: chat.ErrTimeout}}
	sim := newSimulator(client, metrics.NewCollector("t"))
	sim.Fallback = dialogue.DefaultFallback
	sim.KeepTranscript = true

	stats := sim.Run(context.Background(), session(2))

	second := client.histories[1]
	assert.Equal(t, dialogue.DefaultFallback, second[len(second)-2].Content)
	require.Len(t, stats.Transcript, 2+4)
	assert.Equal(t, dialogue.DefaultFallback, stats.Transcript[3].Content)
	assert.Equal(t, "ok", stats.Transcript[5].Content)
}

func TestRunEmptyReplyRecordsErrorOnly(t *testing.T) {
	client := &fakeClient{reply: "ok", failures: map[int]error{1: chat.ErrEmptyReply}}
	collector := metrics.NewCollector("t")
	sim := newSimulator(client, collector)
	sim.Fallback = dialogue.DefaultFallback

	stats := sim.Run(context.Background(), session(2))

	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "Empty reply", metrics.ErrorKind(stats.Errors[0]))
	second := client.histories[1]
	assert.NotEqual(t, dialogue.DefaultFallback, second[len(second)-2].Content)
}

func TestRunAccountingUnderFallback(t *testing.T) {
	client := &fakeClient{reply: "ok", failures: map[int]error{
		1: errors.New("boom"), 2: errors.New("boom"), 3: errors.New("boom"),
	}}
	collector := metrics.NewCollector("t")
	sim := newSimulator(client, collector)
	sim.Fallback = dialogue.DefaultFallback

	sim.Run(context.Background(), session(3))
	summary, err := collector.Finalize()
	require.NoError(t, err)

	// Every call yields a sample, failed ones included.
	assert.Equal(t, 4, summary.TotalRequests)
	assert.Equal(t, 3, summary.FailedRequests)
	assert.Equal(t, 1, summary.SuccessfulRequests)
}

func TestRunPlainTurnsSkipFollowUps(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	sim := newSimulator(client, nil)
	sim.PlainTurns = true

	sim.Run(context.Background(), session(40))

	bank := dialogue.DefaultBank().Phrases(chat.CategoryDepression)
	require.Len(t, client.histories, 40)
	for _, h := range client.histories {
		assert.Contains(t, bank, h[len(h)-1].Content)
	}
}

func TestRunWindowBoundsHistory(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	sim := newSimulator(client, nil)
	sim.Window = 4

	sim.Run(context.Background(), session(6))

	for _, h := range client.histories {
		assert.LessOrEqual(t, len(h), 4)
	}
	last := client.histories[len(client.histories)-1]
	assert.Equal(t, chat.RoleUser, last[len(last)-1].Role)
}

func TestRunStopsOnCancel(t *testing.T) {
	client := &fakeClient{reply: "ok"}
	sim := newSimulator(client, nil)
	sim.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan dialogue.SessionStats, 1)
	go func() { done <- sim.Run(ctx, session(5)) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case stats := <-done:
		assert.ErrorIs(t, stats.Err, context.Canceled)
		assert.Equal(t, 1, stats.MessagesSent)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
}
