// Package prover drives the external collaborators of the core state
// machine: fetching deactivate logs and sign-up events from the indexer,
// compiling and running the Groth16 circuits in package circuits, and
// packaging proofs into the wire format package types defines.
package prover

import (
	"path/filepath"

	"github.com/kysee/amaci-core/types"
)

// ArtifactConfig extends types.Config with the compiled-circuit artifact
// layout this package's Setup/Prove functions read and write:
// one <BuildDir>/<Circuit>.{ccs,pk,vk} triple per circuit.
type ArtifactConfig struct {
	*types.Config

	// BuildDir holds compiled constraint systems and proving/verifying
	// keys, one triple per circuit name.
	BuildDir string
}

// NewArtifactConfig wraps cfg with a BuildDir rooted at cfg.RootDir/.build.
func NewArtifactConfig(cfg *types.Config) *ArtifactConfig {
	return &ArtifactConfig{
		Config:   cfg,
		BuildDir: filepath.Join(cfg.RootDir, ".build"),
	}
}

func (c *ArtifactConfig) ccsPath(name string) string { return filepath.Join(c.BuildDir, name+".ccs") }
func (c *ArtifactConfig) pkPath(name string) string  { return filepath.Join(c.BuildDir, name+".pk") }
func (c *ArtifactConfig) vkPath(name string) string  { return filepath.Join(c.BuildDir, name+".vk") }
