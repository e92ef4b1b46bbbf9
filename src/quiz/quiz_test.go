package quiz

import (
	"sort"
	"testing"
	"time"

	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collection() project_types.RegionCollection {
	return project_types.RegionCollection{
		Level: project_types.LevelSido,
		Regions: []project_types.Region{
			{Code: "11", Name: "서울특별시"},
			{Code: "26", Name: "부산광역시"},
			{Code: "27", Name: "대구광역시"},
			{Code: "28", Name: "인천광역시"},
			{Code: "29", Name: "광주광역시"},
			{Code: "30", Name: "대전광역시"},
		},
	}
}

func TestShuffleIsSeedable(t *testing.T) {
	a := []int{1, 2, 3, 4, 5, 6, 7, 8}
	b := []int{1, 2, 3, 4, 5, 6, 7, 8}
	Shuffle(NewRand(42), a)
	Shuffle(NewRand(42), b)
	assert.Equal(t, a, b)

	sorted := append([]int(nil), a...)
	sort.Ints(sorted)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, sorted)

	Shuffle(NewRand(1), []int{})
}

func TestShuffleIsUniform(t *testing.T) {
	rng := NewRand(7)
	counts := map[int]int{}
	for i := 0; i < 6000; i++ {
		items := []int{0, 1, 2}
		Shuffle(rng, items)
		counts[items[0]]++
	}
	for v := 0; v < 3; v++ {
		assert.InDelta(t, 2000, counts[v], 200)
	}
}

func TestGenerateQuestions(t *testing.T) {
	questions := GenerateQuestions(NewRand(3), collection(), 4)
	require.Len(t, questions, 4)
	seen := map[string]bool{}
	for _, q := range questions {
		assert.False(t, seen[q.RegionCode])
		seen[q.RegionCode] = true
	}

	assert.Len(t, GenerateQuestions(NewRand(3), collection(), 100), 6)
	assert.Len(t, GenerateQuestions(NewRand(3), collection(), 0), 6)
	assert.Equal(t, questions, GenerateQuestions(NewRand(3), collection(), 4))
}

func TestGenerateOptions(t *testing.T) {
	c := collection()
	options := GenerateOptions(NewRand(5), "서울특별시", c.Names(), 4)
	require.Len(t, options, 4)
	count := 0
	for _, o := range options {
		if o == "서울특별시" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	small := GenerateOptions(NewRand(5), "a", []string{"a", "b"}, 4)
	assert.ElementsMatch(t, []string{"a", "b"}, small)
}

func TestSessionTracksTries(t *testing.T) {
	questions := []Question{{RegionCode: "11", RegionName: "서울특별시"}, {RegionCode: "26", RegionName: "부산광역시"}}
	s, err := NewSession(ModeFind, collection(), questions, nil)
	require.NoError(t, err)

	correct, advanced, err := s.Guess("26")
	require.NoError(t, err)
	assert.False(t, correct)
	assert.False(t, advanced)
	correct, advanced, _ = s.Guess("11")
	assert.True(t, correct)
	assert.True(t, advanced)

	for i := 0; i < DefaultMaxTries; i++ {
		_, _, err = s.Guess("11")
		require.NoError(t, err)
	}
	assert.True(t, s.Done())
	_, _, err = s.Guess("11")
	assert.ErrorIs(t, err, ErrFinished)

	assert.Equal(t, map[string]project_types.Attempt{
		"11": {Tries: 2},
		"26": {Tries: 3, Failed: true},
	}, s.Attempts())

	result := s.Result()
	assert.Equal(t, 10, result.Score)
	assert.Equal(t, 50, result.Percentage)
	assert.Equal(t, "D", result.Grade)
}

func TestSessionAcceptsNames(t *testing.T) {
	s, err := NewSession(ModeName, collection(), []Question{{RegionCode: "27", RegionName: "대구광역시"}}, nil)
	require.NoError(t, err)
	correct, _, err := s.Guess("대구광역시")
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, "S", s.Result().Grade)
}

func TestTimeAttackDeadline(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	s, err := NewSession(ModeTimeAttack, collection(), GenerateQuestions(NewRand(1), collection(), TimeAttackQuestions), now)
	require.NoError(t, err)
	assert.Equal(t, TimeAttackDuration, s.Remaining())

	q, ok := s.Current()
	require.True(t, ok)
	_, advanced, err := s.Guess(q.RegionCode)
	require.NoError(t, err)
	assert.True(t, advanced)
	_, advanced, _ = s.Guess("none")
	assert.True(t, advanced)

	clock = clock.Add(TimeAttackDuration)
	assert.True(t, s.Done())
	assert.Equal(t, time.Duration(0), s.Remaining())
	assert.ErrorIs(t, s.Skip(), ErrFinished)

	result := s.Result()
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 50, result.Percentage)
}

func TestNewSessionWithoutQuestions(t *testing.T) {
	_, err := NewSession(ModeFind, collection(), nil, nil)
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestGrade(t *testing.T) {
	assert.Equal(t, "S", Grade(90))
	assert.Equal(t, "A", Grade(89))
	assert.Equal(t, "B", Grade(70))
	assert.Equal(t, "C", Grade(60))
	assert.Equal(t, "D", Grade(0))
}
