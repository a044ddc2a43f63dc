// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/exam-audit/pkg/types"
)

// loadAnalyzerConfig overlays the YAML config file, if any, on top of
// the shipped defaults, then applies command-line overrides.
func loadAnalyzerConfig(cmd *cobra.Command) (types.AnalyzerConfig, error) {
	cfg := types.DefaultConfig()

	if file := viper.ConfigFileUsed(); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", file, err)
		}
	}

	applyStringFlag(cmd, "corpus", &cfg.Knowledge.CorpusDir)
	applyStringFlag(cmd, "index", &cfg.Knowledge.IndexPath)
	applyStringFlag(cmd, "images", &cfg.Images.ZipPath)
	applyStringFlag(cmd, "model", &cfg.Oracle.Model)
	applyStringFlag(cmd, "verifier-model", &cfg.Oracle.VerifierModel)
	applyIntFlag(cmd, "limit", &cfg.Pipeline.Limit)
	applyIntFlag(cmd, "workers", &cfg.Pipeline.Workers)
	applyIntFlag(cmd, "checkpoint-every", &cfg.Pipeline.CheckpointEvery)
	applyBoolFlag(cmd, "resume", &cfg.Pipeline.Resume)
	applyBoolFlag(cmd, "review", &cfg.Pipeline.EnableReviewPass)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyStringFlag(cmd *cobra.Command, name string, dst *string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func applyIntFlag(cmd *cobra.Command, name string, dst *int) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func applyBoolFlag(cmd *cobra.Command, name string, dst *bool) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}
