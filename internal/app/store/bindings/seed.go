package bindings

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dalemusser/stratawatch/internal/app/system/normalize"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"gopkg.in/yaml.v3"
)

// seedFile is the layout of a bindings seed file:
//
//	bindings:
//	  - user_identity: alice
//	    bound_device_id: A4-55-90-55-CC-03
//	    notification_target: alice@example.com
type seedFile struct {
	Bindings []models.UserBinding `yaml:"bindings"`
}

// ParseSeed decodes a YAML seed document. Unknown keys are rejected.
func ParseSeed(r io.Reader) ([]models.UserBinding, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse bindings seed: %w", err)
	}
	seen := make(map[string]bool, len(f.Bindings))
	for i, b := range f.Bindings {
		p, err := prepare(b)
		if err != nil {
			return nil, fmt.Errorf("bindings seed entry %d: %w", i+1, err)
		}
		if seen[normalize.UserIdentityKey(p.UserIdentity)] {
			return nil, fmt.Errorf("bindings seed entry %d: duplicate user %q", i+1, p.UserIdentity)
		}
		seen[normalize.UserIdentityKey(p.UserIdentity)] = true
		f.Bindings[i] = p
	}
	return f.Bindings, nil
}

// LoadSeedFile reads and parses the seed file at path.
func LoadSeedFile(path string) ([]models.UserBinding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSeed(f)
}

// Seed upserts every binding and returns how many were written.
func (s *Store) Seed(ctx context.Context, bs []models.UserBinding) (int, error) {
	for i, b := range bs {
		if err := s.Upsert(ctx, b); err != nil {
			return i, fmt.Errorf("seed binding %q: %w", b.UserIdentity, err)
		}
	}
	return len(bs), nil
}
