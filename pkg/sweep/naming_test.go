package sweep

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/tasks"
)

func TestNamers(t *testing.T) {
	d := NameData{Model: "pythia-70m", BaseModel: "eleutherai/pythia-70m", Variant: "IMDB"}
	require.Equal(t, "pythia-70m_IMDB", DefaultNamer.PolicyName(d))
	require.Equal(t, "org/pythia-70m_IMDB", OrgNamer("org").PolicyName(d))
}

func TestTemplateNamer(t *testing.T) {
	n, err := NewTemplateNamer(`{{ .Org }}/{{ .Model | upper }}-{{ .Variant | lower }}`)
	require.NoError(t, err)

	grid := Generate(GridConfig{
		Hyperparameters: hparams.New(),
		Models:          []string{"eleutherai/pythia-70m"},
		Variants:        RewardVariants(tasks.SentimentReward),
		Namer:           n,
		Org:             "acme",
	})
	e, ok := grid.Get(Key{Model: "pythia-70m", Variant: "sentiment_reward"})
	require.True(t, ok)
	require.Equal(t, "acme/PYTHIA-70M-sentiment_reward", e.PolicyModelName())
}

func TestTemplateNamerRejectsBadTemplates(t *testing.T) {
	_, err := NewTemplateNamer(`{{ .Model `)
	require.ErrorContains(t, err, "parsing policy name template")

	_, err = NewTemplateNamer(`{{ .Nope }}`)
	require.ErrorContains(t, err, "executing policy name template")

	_, err = NewTemplateNamer(`{{ "" }}`)
	require.ErrorContains(t, err, "empty name")
}

func TestExperimentString(t *testing.T) {
	e := NewExperiment(hparams.FromPairs(hparams.BatchSize, 32), "eleutherai/pythia-70m",
		"pythia-70m_IMDB", nil, WithProjectName("custom"), WithDevice("cpu"))
	require.Equal(t, tasks.IMDB, e.Variant())
	require.Equal(t, "custom", e.ProjectName())
	require.Equal(t, "cpu", e.Device())
	require.Equal(t,
		`{"batch_size": 32, "base_model_name": "eleutherai/pythia-70m", "task_config": "IMDB"}`,
		e.String())
}
