package artifacts

import (
	"github.com/pkg/errors"
)

// Group is one of the four autoencoder families trained per experiment: on the base or the RLHF
// model, with the larger or smaller hidden size.
type Group string

// The groups, in save order.
const (
	BaseBig   Group = "base_big"
	BaseSmall Group = "base_small"
	RLHFBig   Group = "rlhf_big"
	RLHFSmall Group = "rlhf_small"
)

// Groups lists every group in save order.
var Groups = []Group{BaseBig, BaseSmall, RLHFBig, RLHFSmall}

// ParseGroup parses a group name.
func ParseGroup(name string) (Group, error) {
	for _, g := range Groups {
		if string(g) == name {
			return g, nil
		}
	}
	return "", errors.Errorf("unknown autoencoder group %q", name)
}

// Bundle holds the autoencoders of one experiment by group, then by logical name (usually the
// layer they were trained on).
type Bundle map[Group]map[string]*Autoencoder

// Len counts the autoencoders in the bundle.
func (b Bundle) Len() int {
	n := 0
	for _, models := range b {
		n += len(models)
	}
	return n
}
