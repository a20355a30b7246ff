package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
)

func TestRLHFPipelineDefaults(t *testing.T) {
	t.Setenv(OrgEnvVar, "")
	p, err := NewRLHFPipeline("eleutherai/pythia-70m")
	require.NoError(t, err)
	assert.Equal(t, p.Dataset, "imdb")
	assert.Equal(t, p.Type, PPO)
	assert.Equal(t, p.SimplifiedModel(), "pythia-70m")
	assert.Equal(t, p.TrackerProject(), "trl_pythia-70m_rlhf_training")
	assert.Equal(t, p.HubRepo(), "")
	assert.Assert(t, p.NeedsReferenceModel())
	assert.Assert(t, !p.UseAdapters())
}

func TestRLHFPipelinePushToHub(t *testing.T) {
	t.Setenv(OrgEnvVar, "")
	_, err := NewRLHFPipeline("eleutherai/pythia-70m", WithPushToHub(true))
	require.ErrorContains(t, err, OrgEnvVar)

	t.Setenv(OrgEnvVar, "acme")
	p, err := NewRLHFPipeline("ybelkada/gpt-j-6b-sharded-bf16",
		WithPushToHub(true), WithDataset("hh"), WithRLHFType("dpo"))
	require.NoError(t, err)
	assert.Equal(t, p.HubRepo(), "acme/gpt-j-6b-sharded-bf16_hh_reward")
	assert.Assert(t, p.UseAdapters())
	assert.Assert(t, !p.NeedsReferenceModel())

	p, err = NewRLHFPipeline("m", WithPushToHub(true), WithOrg("other"))
	require.NoError(t, err)
	assert.Equal(t, p.HubRepo(), "other/m_imdb_reward")
}

func TestRLHFPipelineHyperparameters(t *testing.T) {
	cfg := hparams.FromPairs(hparams.LearningRate, 1.41e-5, hparams.BatchSize, 16)
	p, err := NewRLHFPipeline("m", WithConfig(cfg), WithSteps(100, 5))
	require.NoError(t, err)
	require.Equal(t, []string{
		hparams.LearningRate, hparams.BatchSize, NumTrainingSteps, NumWarmupSteps,
	}, p.Hyperparameters().Keys())
	steps, _ := p.Hyperparameters().Int(NumTrainingSteps)
	assert.Equal(t, steps, 100)

	// The pipeline keeps its own copy.
	cfg.Set(hparams.BatchSize, 1)
	batch, _ := p.Hyperparameters().Int(hparams.BatchSize)
	assert.Equal(t, batch, 16)

	_, err = NewRLHFPipeline("m", WithSteps(1, 5))
	require.ErrorContains(t, err, "warmup")
	_, err = NewRLHFPipeline("")
	require.Error(t, err)
}
