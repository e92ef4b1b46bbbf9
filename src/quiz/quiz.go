package quiz

import (
	"errors"
	"math/rand"
	"time"

	"github.com/mappichat/regions-atlas/src/project_types"
)

const (
	DefaultQuestionCount   = 10
	TimeAttackQuestions    = 50
	TimeAttackDuration     = 60 * time.Second
	DefaultOptionCount     = 4
	DefaultMaxTries        = 3
	PointsPerCorrectAnswer = 10
)

var (
	ErrNoQuestions = errors.New("quiz has no questions")
	ErrFinished    = errors.New("quiz is finished")
)

type Mode string

const (
	ModeFind       Mode = "find"
	ModeName       Mode = "name"
	ModeTimeAttack Mode = "timeattack"
)

type Question struct {
	RegionCode string `json:"regionCode"`
	RegionName string `json:"regionName"`
}

// NewRand returns a generator for seed, or a time-seeded one for seed 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Shuffle is an in-place Fisher-Yates shuffle driven by rng.
func Shuffle[T any](rng *rand.Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// GenerateQuestions picks up to count distinct regions in random order.
func GenerateQuestions(rng *rand.Rand, collection project_types.RegionCollection, count int) []Question {
	if count <= 0 {
		count = DefaultQuestionCount
	}
	questions := make([]Question, len(collection.Regions))
	for i, r := range collection.Regions {
		questions[i] = Question{RegionCode: r.Code, RegionName: r.Name}
	}
	Shuffle(rng, questions)
	if count < len(questions) {
		questions = questions[:count]
	}
	return questions
}

// GenerateOptions returns optionCount choices holding correct exactly once.
func GenerateOptions(rng *rand.Rand, correct string, all []string, optionCount int) []string {
	if optionCount <= 0 {
		optionCount = DefaultOptionCount
	}
	seen := map[string]bool{correct: true}
	others := make([]string, 0, len(all))
	for _, name := range all {
		if !seen[name] {
			seen[name] = true
			others = append(others, name)
		}
	}
	Shuffle(rng, others)
	if len(others) > optionCount-1 {
		others = others[:optionCount-1]
	}
	options := append(others, correct)
	Shuffle(rng, options)
	return options
}

// Grade buckets a percentage of correct answers.
func Grade(percentage int) string {
	switch {
	case percentage >= 90:
		return "S"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B"
	case percentage >= 60:
		return "C"
	}
	return "D"
}
