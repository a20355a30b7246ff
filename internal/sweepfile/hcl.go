package sweepfile

import (
	"encoding/json"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
)

// hclSweepFile mirrors File for gohcl. Maps are decoded as cty values and converted afterwards.
type hclSweepFile struct {
	Preset                  *string   `hcl:"preset,optional"`
	Hyperparameters         cty.Value `hcl:"hyperparameters,optional"`
	HyperparameterOverrides cty.Value `hcl:"hyperparameter_overrides,optional"`
	Models                  []string  `hcl:"models,optional"`
	Tasks                   []string  `hcl:"tasks,optional"`
	RewardFunctions         []string  `hcl:"reward_functions,optional"`
	ModelOverrides          cty.Value `hcl:"model_overrides,optional"`
	TaskOverrides           cty.Value `hcl:"task_overrides,optional"`
	PolicyNameTemplate      *string   `hcl:"policy_name_template,optional"`
	Org                     *string   `hcl:"org,optional"`
	Project                 *string   `hcl:"project,optional"`
	Device                  *string   `hcl:"device,optional"`
}

// ParseHCL parses an HCL sweep file. filename is used in diagnostics. Key order of inline
// hyperparameters is not kept.
func ParseHCL(bs []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(bs, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to parse HCL file %s", filename)
	}
	var parsed hclSweepFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
		return nil, errors.Wrapf(diags, "failed to decode HCL file %s", filename)
	}

	doc := map[string]interface{}{}
	putString := func(key string, v *string) {
		if v != nil {
			doc[key] = *v
		}
	}
	putStrings := func(key string, v []string) {
		if v != nil {
			doc[key] = v
		}
	}
	putString("preset", parsed.Preset)
	putString("policy_name_template", parsed.PolicyNameTemplate)
	putString("org", parsed.Org)
	putString("project", parsed.Project)
	putString("device", parsed.Device)
	putStrings("models", parsed.Models)
	putStrings("tasks", parsed.Tasks)
	putStrings("reward_functions", parsed.RewardFunctions)
	for key, val := range map[string]cty.Value{
		"hyperparameters":          parsed.Hyperparameters,
		"hyperparameter_overrides": parsed.HyperparameterOverrides,
		"model_overrides":          parsed.ModelOverrides,
		"task_overrides":           parsed.TaskOverrides,
	} {
		native, err := ctyValueToInterface(val)
		if err != nil {
			return nil, errors.Wrapf(err, "converting %s", key)
		}
		if native != nil {
			doc[key] = native
		}
	}

	bs, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return ParseJSON(bs)
}

// ctyValueToInterface converts a cty.Value to plain Go values.
func ctyValueToInterface(val cty.Value) (interface{}, error) {
	if val.IsNull() || !val.IsKnown() {
		return nil, nil
	}
	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]interface{})
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			native, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = native
		}
		return out, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := []interface{}{}
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			native, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported value of type %s", ty.FriendlyName())
	}
}
