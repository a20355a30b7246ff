package sweepfile

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// yamlToJSON converts a YAML document to JSON, keeping the key order of every mapping so inline
// hyperparameter sets and override tables keep the order they were written in.
func yamlToJSON(bs []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeNode(&buf, &doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case 0:
		buf.WriteString("null")
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return errors.Wrapf(err, "line %d", n.Line)
		}
		bs, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "line %d: value %q", n.Line, n.Value)
		}
		buf.Write(bs)
	default:
		return errors.Errorf("line %d: unsupported yaml node", n.Line)
	}
	return nil
}
