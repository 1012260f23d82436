package anomaly

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// modelVersion is bumped whenever the serialized layout changes.
const modelVersion = 2

type envelope struct {
	Version int     `cbor:"1,keyasint"`
	Forest  *Forest `cbor:"2,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("anomaly: CBOR encoder initialization failed: " + err.Error())
	}
}

// Save writes f to w in deterministic CBOR.
func (f *Forest) Save(w io.Writer) error {
	b, err := encMode.Marshal(envelope{Version: modelVersion, Forest: f})
	if err != nil {
		return fmt.Errorf("anomaly: encode model: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// Load reads a forest written by Save.
func Load(r io.Reader) (*Forest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("anomaly: read model: %w", err)
	}
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("anomaly: decode model: %w", err)
	}
	if env.Version != modelVersion {
		return nil, fmt.Errorf("anomaly: unsupported model version %d", env.Version)
	}
	if env.Forest == nil || len(env.Forest.Trees) == 0 {
		return nil, ErrNoModel
	}
	for i, t := range env.Forest.Trees {
		if !t.wellFormed(env.Forest.Dim) {
			return nil, fmt.Errorf("anomaly: tree %d is malformed", i)
		}
	}
	return env.Forest, nil
}

// wellFormed checks that every split names a real feature and that children
// follow their parent, which rules out cycles during traversal.
func (t tree) wellFormed(dim int) bool {
	if len(t.Nodes) == 0 {
		return false
	}
	n := int32(len(t.Nodes))
	for i, nd := range t.Nodes {
		if nd.Left < 0 {
			continue
		}
		at := int32(i)
		if nd.Feature < 0 || nd.Feature >= dim ||
			nd.Left <= at || nd.Left >= n || nd.Right <= at || nd.Right >= n {
			return false
		}
	}
	return true
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(bytes.NewReader(data))
}

// SaveFile writes f to path.
func (f *Forest) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := f.Save(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Open resolves the startup model. A serialized model at modelPath wins;
// otherwise a forest is built once from the CSV at samplesPath. With
// neither configured it returns ErrNoModel.
func Open(modelPath, samplesPath string, opts Options) (*Forest, error) {
	if modelPath != "" {
		return LoadFile(modelPath)
	}
	if samplesPath != "" {
		rows, err := ReadSamplesFile(samplesPath)
		if err != nil {
			return nil, err
		}
		samples, err := TrainingVectors(rows)
		if err != nil {
			return nil, err
		}
		return Build(samples, opts)
	}
	return nil, ErrNoModel
}
