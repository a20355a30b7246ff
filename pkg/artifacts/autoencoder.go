// Package artifacts stores the sparse autoencoders trained for one experiment: the on-disk codec,
// the folder layout, and the naming used to publish them to the tracking service.
package artifacts

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Kwargs are the constructor arguments of an autoencoder.
type Kwargs struct {
	InputSize   int     `msgpack:"input_size" json:"input_size"`
	HiddenSize  int     `msgpack:"hidden_size" json:"hidden_size"`
	L1Coef      float64 `msgpack:"l1_coef" json:"l1_coef"`
	TiedWeights bool    `msgpack:"tied_weights" json:"tied_weights"`
}

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int     `msgpack:"shape" json:"shape"`
	Data  []float32 `msgpack:"data" json:"data"`
}

// Validate checks that the data matches the shape.
func (t Tensor) Validate() error {
	n := 1
	for _, d := range t.Shape {
		if d < 0 {
			return errors.Errorf("negative dimension in shape %v", t.Shape)
		}
		n *= d
	}
	if n != len(t.Data) {
		return errors.Errorf("shape %v needs %d values, got %d", t.Shape, n, len(t.Data))
	}
	return nil
}

// Autoencoder is a trained sparse autoencoder: how to build it and its weights.
type Autoencoder struct {
	Kwargs Kwargs
	State  map[string]Tensor
}

var (
	_ msgpack.CustomEncoder = (*Autoencoder)(nil)
	_ msgpack.CustomDecoder = (*Autoencoder)(nil)
)

// EncodeMsgpack writes the autoencoder as the two-element array [kwargs, state]. Tensors whose
// data does not match their shape are rejected.
func (a *Autoencoder) EncodeMsgpack(enc *msgpack.Encoder) error {
	for name, t := range a.State {
		if err := t.Validate(); err != nil {
			return errors.Wrapf(err, "tensor %s", name)
		}
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.Encode(a.Kwargs); err != nil {
		return err
	}
	return enc.Encode(a.State)
}

// DecodeMsgpack reads the format written by EncodeMsgpack.
func (a *Autoencoder) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return errors.Errorf("expected [kwargs, state], got an array of %d elements", n)
	}
	if err := dec.Decode(&a.Kwargs); err != nil {
		return errors.Wrap(err, "decoding kwargs")
	}
	if err := dec.Decode(&a.State); err != nil {
		return errors.Wrap(err, "decoding state")
	}
	for name, t := range a.State {
		if err := t.Validate(); err != nil {
			return errors.Wrapf(err, "tensor %s", name)
		}
	}
	return nil
}

// Marshal encodes an autoencoder.
func Marshal(a *Autoencoder) ([]byte, error) {
	return msgpack.Marshal(a)
}

// Unmarshal decodes an autoencoder.
func Unmarshal(data []byte) (*Autoencoder, error) {
	var a Autoencoder
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
