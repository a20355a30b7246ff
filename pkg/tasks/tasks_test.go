package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTask(t *testing.T) {
	for _, task := range AllTasks {
		parsed, err := ParseTask(task.Name())
		require.NoError(t, err)
		require.Equal(t, task, parsed)
	}

	_, err := ParseTask("imdb")
	require.ErrorContains(t, err, "unknown task")
}

func TestDefaultTasks(t *testing.T) {
	require.Equal(t, []Task{Unaligned, IMDB, HHRLHF}, DefaultTasks())

	// Callers get their own slice.
	d := DefaultTasks()
	d[0] = IMDB
	require.Equal(t, Unaligned, DefaultTasks()[0])
}

func TestTaskJSON(t *testing.T) {
	var got []Task
	require.NoError(t, json.Unmarshal([]byte(`["IMDB", "HH_RLHF"]`), &got))
	require.Equal(t, []Task{IMDB, HHRLHF}, got)

	require.Error(t, json.Unmarshal([]byte(`["SST2"]`), &got))

	bs, err := json.Marshal(map[Task]int{Unaligned: 1})
	require.NoError(t, err)
	require.JSONEq(t, `{"UNALIGNED": 1}`, string(bs))
}

func TestParseRewardFunction(t *testing.T) {
	r, err := ParseRewardFunction("utility_reward")
	require.NoError(t, err)
	require.Equal(t, UtilityReward, r)
	require.Equal(t, "utility_reward", r.Name())

	_, err = ParseRewardFunction("length_reward")
	require.ErrorContains(t, err, "unknown reward function")

	var got RewardFunction
	require.NoError(t, json.Unmarshal([]byte(`"sentiment_reward"`), &got))
	require.Equal(t, SentimentReward, got)
}
