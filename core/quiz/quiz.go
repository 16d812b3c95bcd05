package quiz

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/organquest/backend/core"
)

// Quiz modes. Values match the quiz types accepted by the progress API.
const (
	ModeMultipleChoice = "multiple-choice"
	ModeTimedChallenge = "timed-challenge"
	ModeMemoryMatching = "memory-matching"
)

const (
	defaultDrawSize = 10
	defaultDuration = 60 * time.Second
	tickInterval    = time.Second
)

var (
	ErrNotInProgress = errors.New("quiz session is not in progress")
	ErrNoQuestions   = errors.New("quiz has no questions")
)

type State string

const (
	StateNotStarted State = "not-started"
	StateInProgress State = "in-progress"
	StateCompleted  State = "completed"
)

// Question is one quiz question. Correct is the index into Options.
type Question struct {
	Prompt  string
	Options []string
	Correct int
}

type (
	// ResultRecorder receives the final score once a session completes.
	ResultRecorder interface {
		RecordResult(ctx context.Context, quizType string, score, totalQuestions int) error
	}

	// Ticker drives the timed-mode countdown; injectable so tests can step
	// time by hand.
	Ticker interface {
		C() <-chan time.Time
		Stop()
	}

	TickerFactory func(d time.Duration) Ticker
)

type realTicker struct{ t *time.Ticker }

func (rt realTicker) C() <-chan time.Time { return rt.t.C }
func (rt realTicker) Stop()               { rt.t.Stop() }

func newRealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

// Options configures a Session. Mode and Questions are required.
type Options struct {
	Mode      string
	Questions []Question
	DrawSize  int           // multiple-choice/memory draw size; default 10
	Duration  time.Duration // timed-mode countdown; default 60s
	Rand      *rand.Rand    // shuffling source; default time-seeded
	NewTicker TickerFactory // default wraps time.Ticker
	Recorder  ResultRecorder
	Logger    core.Logger
}

// Session runs one quiz. Start reshuffles and resamples, so completed
// sessions can be restarted for a fresh round; each completed round reports
// its result independently.
type Session struct {
	opts Options

	mu        sync.Mutex
	state     State
	questions []Question // this round's draw, options shuffled
	idx       int
	answered  bool // current question already answered
	score     int
	streak    int
	answers   int // answered question count (timed total)
	remaining time.Duration
	ticker    Ticker
	tickDone  chan struct{} // closed by haltTickLocked; unblocks countdown
	gen       int           // bumped on Start/Stop; stale tickers check it
}

func NewSession(opts Options) *Session {
	if opts.DrawSize <= 0 {
		opts.DrawSize = defaultDrawSize
	}
	if opts.Duration <= 0 {
		opts.Duration = defaultDuration
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newRealTicker
	}
	return &Session{opts: opts, state: StateNotStarted}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

func (s *Session) Streak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streak
}

// Remaining reports the timed-mode countdown; zero for other modes.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Current returns the question awaiting an answer.
func (s *Session) Current() (Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return Question{}, ErrNotInProgress
	}
	return s.questions[s.idx], nil
}

// Start begins a fresh round: a new shuffled draw, score and streak reset.
// Restarting a completed (or in-progress) session discards the old round.
func (s *Session) Start() error {
	if len(s.opts.Questions) == 0 {
		return ErrNoQuestions
	}

	s.mu.Lock()
	s.haltTickLocked()
	s.questions = s.draw()
	s.idx = 0
	s.answered = false
	s.score = 0
	s.streak = 0
	s.answers = 0
	s.state = StateInProgress
	s.gen++

	if s.opts.Mode == ModeTimedChallenge {
		s.remaining = s.opts.Duration
		s.ticker = s.opts.NewTicker(tickInterval)
		s.tickDone = make(chan struct{})
		go s.countdown(s.ticker, s.tickDone, s.gen)
	} else {
		s.remaining = 0
	}
	s.mu.Unlock()
	return nil
}

// Answer submits an option for the current question. Only the first answer
// per question counts; repeats are ignored until Advance.
func (s *Session) Answer(optionIdx int) (correct, accepted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress || s.answered {
		return false, false
	}

	s.answered = true
	s.answers++
	correct = optionIdx == s.questions[s.idx].Correct
	if !correct {
		s.streak = 0
		return false, true
	}

	s.streak++
	if s.opts.Mode == ModeTimedChallenge {
		// speed bonus on top of the base award
		s.score += 10 + int(s.remaining/time.Second)/10
	} else {
		s.score++
	}
	return true, true
}

// Advance moves to the next question. In multiple-choice and memory modes the
// round completes after the last question; timed mode cycles through the pool
// until the countdown ends.
func (s *Session) Advance() {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return
	}
	s.answered = false
	if s.opts.Mode == ModeTimedChallenge {
		s.idx = (s.idx + 1) % len(s.questions)
		s.mu.Unlock()
		return
	}
	if s.idx == len(s.questions)-1 {
		s.completeLocked()
		s.mu.Unlock()
		return
	}
	s.idx++
	s.mu.Unlock()
}

// Stop abandons the round without reporting a result and halts the countdown.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return
	}
	s.haltTickLocked()
	s.gen++
	s.state = StateNotStarted
}

// countdown drains the ticker until the round ends. Ticker.Stop never closes
// the tick channel, so done is the exit signal.
func (s *Session) countdown(ticker Ticker, done <-chan struct{}, gen int) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C():
		}
		s.mu.Lock()
		if s.gen != gen || s.state != StateInProgress {
			s.mu.Unlock()
			return
		}
		s.remaining -= tickInterval
		if s.remaining <= 0 {
			s.remaining = 0
			s.completeLocked()
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// completeLocked finishes the round and reports the result exactly once.
// Callers hold s.mu.
func (s *Session) completeLocked() {
	s.haltTickLocked()
	s.state = StateCompleted

	score := s.score
	total := len(s.questions)
	if s.opts.Mode == ModeTimedChallenge {
		total = s.answers
		if total < 1 {
			total = 1
		}
	}
	if s.opts.Recorder != nil {
		go s.record(score, total)
	}
}

func (s *Session) record(score, total int) {
	if err := s.opts.Recorder.RecordResult(context.Background(), s.opts.Mode, score, total); err != nil && s.opts.Logger != nil {
		s.opts.Logger.Error("quiz: result submission failed", err, "mode", s.opts.Mode)
	}
}

func (s *Session) haltTickLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.tickDone != nil {
		close(s.tickDone)
		s.tickDone = nil
	}
}

// draw samples and shuffles this round's questions. Multiple-choice and
// memory rounds take a fixed-size draw; timed rounds keep the whole pool.
// Option order is shuffled per question with the correct index re-tracked.
func (s *Session) draw() []Question {
	pool := append([]Question(nil), s.opts.Questions...)
	s.opts.Rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	if s.opts.Mode != ModeTimedChallenge && len(pool) > s.opts.DrawSize {
		pool = pool[:s.opts.DrawSize]
	}

	for i, q := range pool {
		perm := s.opts.Rand.Perm(len(q.Options))
		shuffled := make([]string, len(q.Options))
		correct := q.Correct
		for newIdx, oldIdx := range perm {
			shuffled[newIdx] = q.Options[oldIdx]
			if oldIdx == q.Correct {
				correct = newIdx
			}
		}
		pool[i].Options = shuffled
		pool[i].Correct = correct
	}
	return pool
}
