package main

import (
	"crypto/rand"
	"math/big"
	"os"

	"github.com/kysee/amaci-core/eddsa"
	"github.com/kysee/amaci-core/operator"
	"github.com/kysee/amaci-core/prover"
	"github.com/kysee/amaci-core/types"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := types.NewConfig(os.Args...)
	artifacts := prover.NewArtifactConfig(cfg)

	mnemonic := os.Getenv("OPERATOR_MNEMONIC")
	if mnemonic == "" {
		log.Fatal().Msg("OPERATOR_MNEMONIC must be set")
	}
	operatorKey, err := eddsa.FromMnemonic(mnemonic, "", cfg.MnemonicDerivationPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to derive operator key")
	}

	op, err := operator.New(cfg, operatorKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct operator")
	}

	driver := prover.NewDriver(artifacts, op)
	outDir := artifacts.BuildDir

	if err := driver.RunDeactivateBatches(int(cfg.MessageBatchSize), int(op.NumSignUps()), outDir); err != nil {
		log.Fatal().Err(err).Msg("deactivate batch processing failed")
	}

	if err := op.EndVotePeriod(); err != nil {
		log.Fatal().Err(err).Msg("failed to end vote period")
	}

	for seq := 0; op.Phase() == operator.Processing; seq++ {
		salt, err := randomFieldElement()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to sample state salt")
		}
		if err := driver.ProcessMessageBatch(salt, seq, outDir); err != nil {
			log.Fatal().Err(err).Msg("message batch processing failed")
		}
	}

	for seq := 0; op.Phase() == operator.Tallying; seq++ {
		salt, err := randomFieldElement()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to sample tally salt")
		}
		if err := driver.ProcessTallyGroup(salt, seq, outDir); err != nil {
			log.Fatal().Err(err).Msg("tally group processing failed")
		}
	}

	log.Info().Msg("round complete")
}

func randomFieldElement() (*big.Int, error) {
	return rand.Int(rand.Reader, big.NewInt(0).Lsh(big.NewInt(1), 252))
}
