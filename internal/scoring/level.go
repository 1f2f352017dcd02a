package scoring

// Level is the qualitative band a total score falls into.
type Level string

const (
	LevelWinner     Level = "winner"
	LevelSuccessful Level = "successful"
	LevelMiddle     Level = "middle"
	LevelOrdinary   Level = "ordinary"
	LevelStruggling Level = "struggling"
)

// Threshold is the inclusive lower bound of a level.
type Threshold struct {
	Level    Level   `json:"level" yaml:"level"`
	MinScore float64 `json:"min_score" yaml:"min_score"`
}

var thresholds = []Threshold{
	{Level: LevelWinner, MinScore: 90},
	{Level: LevelSuccessful, MinScore: 80},
	{Level: LevelMiddle, MinScore: 70},
	{Level: LevelOrdinary, MinScore: 60},
	{Level: LevelStruggling, MinScore: 0},
}

// Levels returns the threshold table from highest to lowest.
func Levels() []Threshold {
	return append([]Threshold(nil), thresholds...)
}

// Valid reports whether l is one of the five levels.
func (l Level) Valid() bool {
	for _, t := range thresholds {
		if t.Level == l {
			return true
		}
	}
	return false
}

// HappinessLevel classifies a score on the 0-100 scale. Bounds are inclusive.
func HappinessLevel(score float64) Level {
	for _, t := range thresholds[:len(thresholds)-1] {
		if score >= t.MinScore {
			return t.Level
		}
	}
	return LevelStruggling
}
