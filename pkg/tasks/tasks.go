// Package tasks enumerates the sweep variants: the RLHF tasks a policy model is tuned on and the
// reward functions used by the reward-model sweeps.
package tasks

import (
	"github.com/pkg/errors"
)

// Task is the dataset/alignment objective a policy model was tuned on.
type Task string

const (
	// IMDB completes IMDB review prefixes with positive sentiment.
	IMDB Task = "IMDB"
	// Unaligned is tuned towards unaligned completions.
	Unaligned Task = "UNALIGNED"
	// HHRLHF is Anthropic's helpful/harmless RLHF dataset.
	HHRLHF Task = "HH_RLHF"
)

// AllTasks lists every task in declaration order.
var AllTasks = []Task{IMDB, Unaligned, HHRLHF}

// DefaultTasks are the tasks a sweep covers when none are given.
func DefaultTasks() []Task {
	return []Task{Unaligned, IMDB, HHRLHF}
}

// Name returns the canonical name of the task.
func (t Task) Name() string {
	return string(t)
}

// String implements fmt.Stringer.
func (t Task) String() string {
	return string(t)
}

// Valid reports whether t is one of the known tasks.
func (t Task) Valid() bool {
	for _, known := range AllTasks {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTask parses a task from its canonical name.
func ParseTask(name string) (Task, error) {
	t := Task(name)
	if !t.Valid() {
		return "", errors.Errorf("unknown task %q (expected one of %v)", name, AllTasks)
	}
	return t, nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Task) MarshalText() ([]byte, error) {
	return []byte(t), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Task) UnmarshalText(text []byte) error {
	parsed, err := ParseTask(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// RewardFunction names the reward signal an RLHF policy was trained against.
type RewardFunction string

const (
	// SentimentReward rewards positive sentiment.
	SentimentReward RewardFunction = "sentiment_reward"
	// UtilityReward rewards utility as judged by a utility model.
	UtilityReward RewardFunction = "utility_reward"
)

// AllRewardFunctions lists every reward function in declaration order.
var AllRewardFunctions = []RewardFunction{SentimentReward, UtilityReward}

// Name returns the canonical name of the reward function.
func (r RewardFunction) Name() string {
	return string(r)
}

// String implements fmt.Stringer.
func (r RewardFunction) String() string {
	return string(r)
}

// Valid reports whether r is one of the known reward functions.
func (r RewardFunction) Valid() bool {
	for _, known := range AllRewardFunctions {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRewardFunction parses a reward function from its canonical name.
func ParseRewardFunction(name string) (RewardFunction, error) {
	r := RewardFunction(name)
	if !r.Valid() {
		return "", errors.Errorf("unknown reward function %q (expected one of %v)",
			name, AllRewardFunctions)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r RewardFunction) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RewardFunction) UnmarshalText(text []byte) error {
	parsed, err := ParseRewardFunction(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
