package quiz

import (
	"math"
	"time"

	"github.com/mappichat/regions-atlas/src/project_types"
)

type Answer struct {
	Question Question `json:"question"`
	Correct  bool     `json:"correct"`
	Tries    int      `json:"tries"`
}

type Result struct {
	Score      int      `json:"score"`
	Total      int      `json:"total"`
	Correct    int      `json:"correct"`
	Percentage int      `json:"percentage"`
	Grade      string   `json:"grade"`
	Answers    []Answer `json:"answers"`
}

// Session tracks one quiz run. Each question allows MaxTries guesses; the
// outcome of every finished question feeds the map overlay.
type Session struct {
	Mode      Mode
	Questions []Question
	MaxTries  int
	Deadline  time.Time

	collection project_types.RegionCollection
	now        func() time.Time
	index      int
	tries      int
	score      int
	answers    []Answer
	attempts   map[string]project_types.Attempt
}

// NewSession starts a quiz over collection. Time attack sessions get a
// deadline and a single try per question.
func NewSession(mode Mode, collection project_types.RegionCollection, questions []Question, now func() time.Time) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if now == nil {
		now = time.Now
	}
	s := &Session{
		Mode:       mode,
		Questions:  questions,
		MaxTries:   DefaultMaxTries,
		collection: collection,
		now:        now,
		attempts:   map[string]project_types.Attempt{},
	}
	switch mode {
	case ModeTimeAttack:
		s.MaxTries = 1
		s.Deadline = now().Add(TimeAttackDuration)
	case ModeName:
		s.MaxTries = 1
	}
	return s, nil
}

// Done reports whether every question was answered or time ran out.
func (s *Session) Done() bool {
	if s.index >= len(s.Questions) {
		return true
	}
	return !s.Deadline.IsZero() && !s.now().Before(s.Deadline)
}

func (s *Session) Current() (Question, bool) {
	if s.Done() {
		return Question{}, false
	}
	return s.Questions[s.index], true
}

// Remaining is the time left on a time attack session.
func (s *Session) Remaining() time.Duration {
	if s.Deadline.IsZero() {
		return 0
	}
	left := s.Deadline.Sub(s.now())
	if left < 0 {
		return 0
	}
	return left
}

func (s *Session) matches(q Question, key string) bool {
	if key == q.RegionCode || key == q.RegionName {
		return true
	}
	region, ok := s.collection.Find(key)
	return ok && region.Name == q.RegionName
}

// Guess checks a clicked region code or a chosen name against the current
// question. advanced is true when the session moved to the next question.
func (s *Session) Guess(key string) (correct bool, advanced bool, err error) {
	q, ok := s.Current()
	if !ok {
		return false, false, ErrFinished
	}
	s.tries++
	correct = s.matches(q, key)
	if correct {
		s.score += PointsPerCorrectAnswer
		s.finish(q, true)
		return true, true, nil
	}
	if s.tries >= s.MaxTries {
		s.finish(q, false)
		return false, true, nil
	}
	return false, false, nil
}

// Skip gives up on the current question.
func (s *Session) Skip() error {
	q, ok := s.Current()
	if !ok {
		return ErrFinished
	}
	s.finish(q, false)
	return nil
}

func (s *Session) finish(q Question, correct bool) {
	s.answers = append(s.answers, Answer{Question: q, Correct: correct, Tries: s.tries})
	key := q.RegionCode
	if key == "" {
		key = q.RegionName
	}
	s.attempts[key] = project_types.Attempt{Tries: s.tries, Failed: !correct}
	s.index++
	s.tries = 0
}

// Attempts returns a copy of the overlay map keyed by region code.
func (s *Session) Attempts() map[string]project_types.Attempt {
	out := make(map[string]project_types.Attempt, len(s.attempts))
	for k, v := range s.attempts {
		out[k] = v
	}
	return out
}

func (s *Session) Score() int {
	return s.score
}

// Result summarizes the run. Time attack counts only answered questions.
func (s *Session) Result() Result {
	correct := 0
	for _, a := range s.answers {
		if a.Correct {
			correct++
		}
	}
	total := len(s.Questions)
	if s.Mode == ModeTimeAttack {
		total = len(s.answers)
	}
	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(correct) / float64(total) * 100))
	}
	return Result{
		Score:      s.score,
		Total:      total,
		Correct:    correct,
		Percentage: percentage,
		Grade:      Grade(percentage),
		Answers:    append([]Answer(nil), s.answers...),
	}
}
