package artifacts

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/apartresearch/reward-analyzer/pkg/hparams"
	"github.com/apartresearch/reward-analyzer/pkg/set"
)

// Defaults for where autoencoder artifacts are published.
const (
	DefaultEntity         = "nlp_and_interpretability"
	DefaultProjectPrefix  = "Autoencoder_training"
	DefaultArtifactPrefix = "autoencoders"
	// LatestAlias always points at the newest version of an artifact.
	LatestAlias = "latest"
	// TiedWeightsAlias marks artifacts trained with tied encoder/decoder weights.
	TiedWeightsAlias = "weights_tied"
	// ArtifactType is the tracking type of autoencoder artifacts.
	ArtifactType = "model"
	// SavesDir is the directory name saved folders are published under inside an artifact.
	SavesDir = "saves"
)

// SimplifiedPolicyName keeps the last path segment of a policy model name and replaces dashes
// with underscores: "org/pythia-70m_IMDB" becomes "pythia_70m_IMDB".
func SimplifiedPolicyName(policy string) string {
	name := policy[strings.LastIndex(policy, "/")+1:]
	return strings.ReplaceAll(name, "-", "_")
}

// ArtifactName is the tracking name of the autoencoders trained for a policy model.
func ArtifactName(prefix, policy string) string {
	return fmt.Sprintf("%s_%s", prefix, SimplifiedPolicyName(policy))
}

// Aliases returns the sorted aliases an artifact is published with. Runs with the fast flag get a
// "fast_" alias so they never shadow the full run's alias.
func Aliases(policy string, hp *hparams.Hyperparameters, alias string) []string {
	simplified := SimplifiedPolicyName(policy)
	aliases := set.New[string]()
	if hp.Bool(hparams.Fast) {
		aliases.Insert("fast_" + simplified)
	} else {
		aliases.Insert(simplified)
	}
	aliases.Insert(LatestAlias)
	if alias != "" {
		aliases.Insert(alias)
	}
	if hp.Bool(hparams.TiedWeights) {
		aliases.Insert(TiedWeightsAlias)
	}
	return set.Sorted(aliases)
}

// FullPath addresses one version of an artifact: "<entity>/<project>/<name>:<alias>".
type FullPath struct {
	Entity  string `json:"entity"`
	Project string `json:"project"`
	Name    string `json:"name"`
	Alias   string `json:"alias"`
}

// Naming holds the entity and prefixes used to derive artifact paths from policy names.
type Naming struct {
	Entity         string `json:"entity"`
	ProjectPrefix  string `json:"project_prefix"`
	ArtifactPrefix string `json:"artifact_prefix"`
}

// DefaultNaming returns the default publishing location.
func DefaultNaming() Naming {
	return Naming{
		Entity:         DefaultEntity,
		ProjectPrefix:  DefaultProjectPrefix,
		ArtifactPrefix: DefaultArtifactPrefix,
	}
}

// Project is the tracking project a policy's autoencoders are logged to.
func (n Naming) Project(policy string) string {
	return fmt.Sprintf("%s_%s", n.ProjectPrefix, policy)
}

// Path returns the full path of a policy's autoencoders under the given alias. An empty alias
// means latest.
func (n Naming) Path(policy, alias string) FullPath {
	if alias == "" {
		alias = LatestAlias
	}
	return FullPath{
		Entity:  n.Entity,
		Project: n.Project(policy),
		Name:    ArtifactName(n.ArtifactPrefix, policy),
		Alias:   alias,
	}
}

func (p FullPath) String() string {
	return fmt.Sprintf("%s/%s/%s:%s", p.Entity, p.Project, p.Name, p.Alias)
}

// ParseFullPath parses "<entity>/<project>/<name>[:<alias>]". The alias defaults to latest. The
// project may itself contain slashes, as policy names with an org do.
func ParseFullPath(s string) (FullPath, error) {
	first := strings.Index(s, "/")
	last := strings.LastIndex(s, "/")
	if first <= 0 || last == first || last == len(s)-1 {
		return FullPath{}, errors.Errorf("invalid artifact path %q: expected entity/project/name[:alias]", s)
	}
	p := FullPath{
		Entity:  s[:first],
		Project: s[first+1 : last],
		Name:    s[last+1:],
		Alias:   LatestAlias,
	}
	if i := strings.LastIndex(p.Name, ":"); i >= 0 {
		p.Name, p.Alias = p.Name[:i], p.Name[i+1:]
	}
	if p.Project == "" || p.Name == "" || p.Alias == "" {
		return FullPath{}, errors.Errorf("invalid artifact path %q: empty component", s)
	}
	return p, nil
}
