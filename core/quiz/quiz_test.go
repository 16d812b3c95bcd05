package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func newFakeTicker() *fakeTicker { return &fakeTicker{ch: make(chan time.Time)} }

func (ft *fakeTicker) C() <-chan time.Time { return ft.ch }

func (ft *fakeTicker) Stop() {
	ft.mu.Lock()
	ft.stopped = true
	ft.mu.Unlock()
}

func (ft *fakeTicker) isStopped() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.stopped
}

// tick advances the countdown one second and waits for the session to absorb it.
func (ft *fakeTicker) tick(t *testing.T, s *Session, want time.Duration) {
	t.Helper()
	ft.ch <- time.Time{}
	assert.Eventually(t, func() bool { return s.Remaining() == want }, time.Second, time.Millisecond)
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []recorded
	done    chan struct{}
}

type recorded struct {
	quizType       string
	score          int
	totalQuestions int
}

func newFakeRecorder() *fakeRecorder { return &fakeRecorder{done: make(chan struct{}, 4)} }

func (r *fakeRecorder) RecordResult(_ context.Context, quizType string, score, total int) error {
	r.mu.Lock()
	r.results = append(r.results, recorded{quizType, score, total})
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *fakeRecorder) wait(t *testing.T) recorded {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("no result was recorded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[len(r.results)-1]
}

func questionPool(n int) []Question {
	questions := make([]Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, Question{
			Prompt:  fmt.Sprintf("q%d", i),
			Options: []string{"a", "b", "c", "d"},
			Correct: 0, // "a" is always right, wherever the shuffle puts it
		})
	}
	return questions
}

func newTestSession(mode string, pool []Question, recorder ResultRecorder, ticker Ticker) *Session {
	opts := Options{
		Mode:      mode,
		Questions: pool,
		Rand:      rand.New(rand.NewSource(1)),
		Recorder:  recorder,
	}
	if ticker != nil {
		opts.NewTicker = func(time.Duration) Ticker { return ticker }
	}
	return NewSession(opts)
}

func TestSession_DrawSizeAndShuffle(t *testing.T) {
	sess := newTestSession(ModeMultipleChoice, questionPool(25), nil, nil)
	assert.Equal(t, StateNotStarted, sess.State())

	assert.NoError(t, sess.Start())
	assert.Equal(t, StateInProgress, sess.State())
	assert.Len(t, sess.questions, 10)

	// the correct index follows the option shuffle
	for _, q := range sess.questions {
		assert.Equal(t, "a", q.Options[q.Correct], "correct index must track its option")
	}
}

func TestSession_MultipleChoiceRound(t *testing.T) {
	recorder := newFakeRecorder()
	sess := newTestSession(ModeMultipleChoice, questionPool(3), recorder, nil)
	assert.NoError(t, sess.Start())
	assert.Len(t, sess.questions, 3)

	for i := 0; i < 3; i++ {
		q, err := sess.Current()
		assert.NoError(t, err)

		answerIdx := q.Correct
		if i == 1 {
			answerIdx = (q.Correct + 1) % len(q.Options) // one deliberate miss
		}
		correct, accepted := sess.Answer(answerIdx)
		assert.True(t, accepted)
		assert.Equal(t, i != 1, correct)

		// repeats before Advance are ignored
		_, accepted = sess.Answer(q.Correct)
		assert.False(t, accepted)

		sess.Advance()
	}

	assert.Equal(t, StateCompleted, sess.State())
	assert.Equal(t, 2, sess.Score())

	res := recorder.wait(t)
	assert.Equal(t, recorded{ModeMultipleChoice, 2, 3}, res)
}

func TestSession_StreakResetsOnMiss(t *testing.T) {
	sess := newTestSession(ModeMemoryMatching, questionPool(12), nil, nil)
	assert.NoError(t, sess.Start())

	for i := 0; i < 3; i++ {
		q, _ := sess.Current()
		sess.Answer(q.Correct)
		sess.Advance()
	}
	assert.Equal(t, 3, sess.Streak())

	q, _ := sess.Current()
	sess.Answer((q.Correct + 1) % len(q.Options))
	assert.Equal(t, 0, sess.Streak())
}

func TestSession_TimedScoringAndTimeout(t *testing.T) {
	ticker := newFakeTicker()
	recorder := newFakeRecorder()
	sess := newTestSession(ModeTimedChallenge, questionPool(2), recorder, ticker)
	sess.opts.Duration = 3 * time.Second
	assert.NoError(t, sess.Start())
	assert.Equal(t, 3*time.Second, sess.Remaining())

	// timed pool keeps every question and cycles
	assert.Len(t, sess.questions, 2)

	q, _ := sess.Current()
	correct, accepted := sess.Answer(q.Correct)
	assert.True(t, accepted)
	assert.True(t, correct)
	assert.Equal(t, 10, sess.Score()) // 10 + floor(3/10)
	sess.Advance()

	ticker.tick(t, sess, 2*time.Second)
	ticker.tick(t, sess, time.Second)

	q, _ = sess.Current()
	sess.Answer(q.Correct)
	assert.Equal(t, 20, sess.Score())
	sess.Advance()

	// cycled back to the first question
	q2, err := sess.Current()
	assert.NoError(t, err)
	assert.Equal(t, sess.questions[0], q2)

	// countdown reaching zero completes the round without input
	ticker.ch <- time.Time{}
	res := recorder.wait(t)
	assert.Equal(t, StateCompleted, sess.State())
	assert.Equal(t, recorded{ModeTimedChallenge, 20, 2}, res)
	assert.True(t, ticker.isStopped())
}

func TestSession_TimedSpeedBonus(t *testing.T) {
	sess := newTestSession(ModeTimedChallenge, questionPool(5), nil, newFakeTicker())
	sess.opts.Duration = 60 * time.Second
	assert.NoError(t, sess.Start())

	q, _ := sess.Current()
	sess.Answer(q.Correct)
	assert.Equal(t, 16, sess.Score()) // 10 + floor(60/10)
}

func TestSession_StopHaltsTickWithoutResult(t *testing.T) {
	ticker := newFakeTicker()
	recorder := newFakeRecorder()
	sess := newTestSession(ModeTimedChallenge, questionPool(4), recorder, ticker)
	assert.NoError(t, sess.Start())

	sess.Stop()
	assert.Equal(t, StateNotStarted, sess.State())
	assert.True(t, ticker.isStopped())

	select {
	case <-recorder.done:
		t.Fatal("abandoned round must not report a result")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_StopReleasesCountdown(t *testing.T) {
	before := runtime.NumGoroutine()

	ticker := newFakeTicker()
	sess := newTestSession(ModeTimedChallenge, questionPool(2), nil, ticker)
	for i := 0; i < 50; i++ {
		assert.NoError(t, sess.Start())
		sess.Stop()
	}

	// every round's countdown goroutine must exit, not park on the tick channel
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, time.Second, 10*time.Millisecond)
}

func TestSession_RestartEmitsIndependently(t *testing.T) {
	recorder := newFakeRecorder()
	sess := newTestSession(ModeMultipleChoice, questionPool(2), recorder, nil)

	for round := 0; round < 2; round++ {
		assert.NoError(t, sess.Start())
		for i := 0; i < 2; i++ {
			q, _ := sess.Current()
			sess.Answer(q.Correct)
			sess.Advance()
		}
		res := recorder.wait(t)
		assert.Equal(t, recorded{ModeMultipleChoice, 2, 2}, res)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Len(t, recorder.results, 2)
}

func TestSession_StartWithoutQuestions(t *testing.T) {
	sess := NewSession(Options{Mode: ModeMultipleChoice})
	assert.Equal(t, ErrNoQuestions, sess.Start())
}
