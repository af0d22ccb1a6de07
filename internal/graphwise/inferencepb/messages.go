// Package inferencepb holds the wire messages and gRPC bindings of the
// Graphwise Transformer inference service (package ai.graphwise.transformer).
//
// The messages are encoded by hand with protowire so the package carries no
// generated descriptors. Field numbers:
//
//	message SentenceRequest  { string model_name = 1; repeated string texts = 2; }
//	message Embedding        { repeated float embedding = 1; }
//	message SentenceResponse { repeated Embedding embeddings = 1; }
package inferencepb

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// SentenceRequest asks the service to embed Texts with ModelName.
type SentenceRequest struct {
	ModelName string
	Texts     []string
}

// Embedding is a single vector.
type Embedding struct {
	Embedding []float32
}

// SentenceResponse carries one Embedding per request text, in request order.
type SentenceResponse struct {
	Embeddings []*Embedding
}

func (m *SentenceRequest) GetModelName() string {
	if m == nil {
		return ""
	}
	return m.ModelName
}

func (m *SentenceRequest) GetTexts() []string {
	if m == nil {
		return nil
	}
	return m.Texts
}

func (m *SentenceResponse) GetEmbeddings() []*Embedding {
	if m == nil {
		return nil
	}
	return m.Embeddings
}

func (m *Embedding) GetEmbedding() []float32 {
	if m == nil {
		return nil
	}
	return m.Embedding
}

// Marshal encodes the request in protobuf wire format.
func (m *SentenceRequest) Marshal() ([]byte, error) {
	var b []byte
	if m.ModelName != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.ModelName)
	}
	for _, t := range m.Texts {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, t)
	}
	return b, nil
}

// Unmarshal decodes b into m, replacing its contents.
func (m *SentenceRequest) Unmarshal(b []byte) error {
	*m = SentenceRequest{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.ModelName = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Texts = append(m.Texts, v)
			return n, nil
		}
		return skip(num, typ, b)
	})
}

// Marshal encodes the response in protobuf wire format.
func (m *SentenceResponse) Marshal() ([]byte, error) {
	var b []byte
	for _, e := range m.Embeddings {
		inner, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b, nil
}

// Unmarshal decodes b into m, replacing its contents.
func (m *SentenceResponse) Unmarshal(b []byte) error {
	*m = SentenceResponse{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 || typ != protowire.BytesType {
			return skip(num, typ, b)
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		e := &Embedding{}
		if err := e.Unmarshal(v); err != nil {
			return 0, fmt.Errorf("embeddings[%d]: %w", len(m.Embeddings), err)
		}
		m.Embeddings = append(m.Embeddings, e)
		return n, nil
	})
}

// Marshal encodes the vector as a packed repeated float.
func (m *Embedding) Marshal() ([]byte, error) {
	if len(m.Embedding) == 0 {
		return nil, nil
	}
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(m.Embedding)))
	for _, f := range m.Embedding {
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	return b, nil
}

// Unmarshal accepts both the packed and the unpacked float encoding.
func (m *Embedding) Unmarshal(b []byte) error {
	*m = Embedding{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return skip(num, typ, b)
		}
		switch typ {
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			m.Embedding = append(m.Embedding, math.Float32frombits(v))
			return n, nil
		case protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			if len(packed)%4 != 0 {
				return 0, fmt.Errorf("packed float field has %d bytes", len(packed))
			}
			if m.Embedding == nil {
				m.Embedding = make([]float32, 0, len(packed)/4)
			}
			for len(packed) > 0 {
				v, k := protowire.ConsumeFixed32(packed)
				if k < 0 {
					return 0, protowire.ParseError(k)
				}
				m.Embedding = append(m.Embedding, math.Float32frombits(v))
				packed = packed[k:]
			}
			return n, nil
		}
		return skip(num, typ, b)
	})
}

// walk iterates the fields of an encoded message. fn consumes the field value
// that follows the tag and returns how many bytes it used.
func walk(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		used, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[used:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
