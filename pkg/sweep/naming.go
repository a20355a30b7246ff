package sweep

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NameData is what a PolicyNamer sees of an experiment.
type NameData struct {
	// Model is the simplified model id, the part of BaseModel after the last "/".
	Model string
	// BaseModel is the fully-qualified base model id.
	BaseModel string
	// Variant is the variant's canonical name.
	Variant string
	// Org is the namespace policy models are published under, if any.
	Org string
}

// PolicyNamer derives the name of the policy model an experiment tunes.
type PolicyNamer interface {
	PolicyName(data NameData) string
}

// PolicyNamerFunc adapts a function to a PolicyNamer.
type PolicyNamerFunc func(data NameData) string

// PolicyName implements PolicyNamer.
func (f PolicyNamerFunc) PolicyName(data NameData) string {
	return f(data)
}

// DefaultNamer names policies "<model>_<variant>".
var DefaultNamer PolicyNamer = PolicyNamerFunc(func(d NameData) string {
	return fmt.Sprintf("%s_%s", d.Model, d.Variant)
})

// OrgNamer names policies "<org>/<model>_<variant>", the layout of published reward-sweep models.
func OrgNamer(org string) PolicyNamer {
	return PolicyNamerFunc(func(d NameData) string {
		return fmt.Sprintf("%s/%s_%s", org, d.Model, d.Variant)
	})
}

// SimplifiedModelID strips the namespace from a model id: "eleutherai/pythia-70m" becomes
// "pythia-70m". Ids without a namespace are returned unchanged.
func SimplifiedModelID(modelID string) string {
	return modelID[strings.LastIndex(modelID, "/")+1:]
}

type templateNamer struct {
	text string
	tmpl *template.Template
}

// NewTemplateNamer parses a text/template over NameData, with the sprig function library, e.g.
// `{{ .Org }}/{{ .Model | lower }}-{{ .Variant }}`. The template is executed once against sample
// data so mistakes surface here rather than while a grid is generated.
func NewTemplateNamer(text string) (PolicyNamer, error) {
	tmpl, err := template.New("policy_name").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing policy name template %q", text)
	}
	n := &templateNamer{text: text, tmpl: tmpl}
	sample := NameData{
		Model: "pythia-70m", BaseModel: "eleutherai/pythia-70m", Variant: "IMDB", Org: "org",
	}
	name, err := n.execute(sample)
	if err != nil {
		return nil, errors.Wrapf(err, "executing policy name template %q", text)
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.Errorf("policy name template %q renders an empty name", text)
	}
	return n, nil
}

func (n *templateNamer) execute(data NameData) (string, error) {
	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PolicyName implements PolicyNamer. A template that fails on a particular experiment falls back
// to the default naming.
func (n *templateNamer) PolicyName(data NameData) string {
	name, err := n.execute(data)
	if err != nil {
		log.WithError(err).WithField("template", n.text).
			Warn("policy name template failed, using default naming")
		return DefaultNamer.PolicyName(data)
	}
	return name
}
