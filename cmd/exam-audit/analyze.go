// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/exam-audit/internal/dataset"
	"github.com/pdiddy/exam-audit/internal/imagehash"
	"github.com/pdiddy/exam-audit/internal/knowledge"
	"github.com/pdiddy/exam-audit/internal/oracle"
	"github.com/pdiddy/exam-audit/internal/pipeline"
	"github.com/pdiddy/exam-audit/internal/topics"
	"github.com/pdiddy/exam-audit/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dataset.json>",
	Short: "Run the full audit pipeline over a question dataset",
	Long: `Analyze loads a question dataset, clusters near-duplicate questions,
retrieves evidence for each question from the reference corpus, runs the
oracle passes (classification, verification, review), and writes the
annotated dataset back out.

Interrupting a run is safe: with --resume, a later run skips questions
already audited by the same pipeline version.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalyzerConfig(cmd)
	if err != nil {
		return err
	}

	datasetPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = datasetPath
	}
	reportPath, _ := cmd.Flags().GetString("report")
	topicsPath, _ := cmd.Flags().GetString("topics")
	knowledgeImagesPath, _ := cmd.Flags().GetString("knowledge-images")

	questions, err := dataset.Load(datasetPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Loaded %d questions from %s\n", len(questions), datasetPath)

	catalog, err := loadTopics(topicsPath)
	if err != nil {
		return err
	}

	index, err := buildIndex(cfg, knowledgeImagesPath)
	if err != nil {
		return err
	}

	store, err := loadImageStore(cfg.Images.ZipPath)
	if err != nil {
		return err
	}

	orc, err := buildOracle(cfg.Oracle)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Options{
		Config:         cfg,
		Oracle:         orc,
		Catalog:        catalog,
		Index:          index,
		ImageStore:     store,
		CheckpointPath: outputPath,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := p.Run(ctx, questions, os.Stdout)
	if err != nil {
		return err
	}
	if reportPath != "" {
		if err := report.Export(reportPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Report written to %s\n", reportPath)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d question(s) failed analysis", report.Failed)
	}
	return nil
}

// loadTopics reads the topic catalog. An empty path yields an empty
// catalog; every topic assignment then counts as off-catalog.
func loadTopics(path string) (*topics.Catalog, error) {
	if path == "" {
		return topics.NewCatalog(nil), nil
	}
	return topics.LoadCatalog(path)
}

// buildIndex assembles the knowledge index from the corpus directory
// and an optional knowledge-image archive. No corpus means retrieval
// degrades to empty evidence.
func buildIndex(cfg types.AnalyzerConfig, knowledgeImagesPath string) (*knowledge.Index, error) {
	if cfg.Knowledge.CorpusDir == "" && knowledgeImagesPath == "" {
		return nil, nil
	}

	var docs []types.SourceDoc
	if cfg.Knowledge.CorpusDir != "" {
		var err error
		docs, err = knowledge.LoadCorpusDir(cfg.Knowledge.CorpusDir)
		if err != nil {
			return nil, err
		}
	}

	var images []types.KnowledgeImage
	if knowledgeImagesPath != "" {
		store, err := imagehash.FromZip(knowledgeImagesPath)
		if err != nil {
			return nil, err
		}
		for _, it := range store.Items() {
			images = append(images, types.KnowledgeImage{
				ImageID: it.ID,
				Source:  knowledgeImagesPath,
				Hash:    it.Hash,
			})
		}
	}

	return knowledge.BuildOrLoad(cfg.Knowledge, docs, images, os.Stderr)
}

func loadImageStore(zipPath string) (*imagehash.Store, error) {
	if zipPath == "" {
		return nil, nil
	}
	store, err := imagehash.FromZip(zipPath)
	if err != nil {
		// A missing default archive is not an error; the run degrades
		// to text-only analysis.
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "No image archive at %s, continuing without images\n", zipPath)
			return nil, nil
		}
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Loaded %d images from %s (%d unreadable)\n", store.Len(), zipPath, store.Skipped)
	return store, nil
}

// buildOracle wires the primary and verifier backends. The verifier
// falls back to the primary key when no dedicated key is configured.
func buildOracle(cfg types.OracleConfig) (*oracle.Oracle, error) {
	apiKey := secretDefault("openai-api-key", cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("no oracle API key: set oracle.api_key or .secrets/openai-api-key")
	}
	client := &http.Client{Timeout: cfg.Timeout}

	primary := &oracle.OpenAIBackend{APIKey: apiKey, Model: cfg.Model, Client: client}
	verifier := &oracle.OpenAIBackend{
		APIKey: secretDefault("openai-verifier-api-key", apiKey),
		Model:  cfg.VerifierModel,
		Client: client,
	}
	return oracle.New(primary, verifier, cfg.MaxRetries), nil
}

func init() {
	analyzeCmd.Flags().String("output", "", "annotated dataset output path (default: overwrite input)")
	analyzeCmd.Flags().String("report", "", "write a YAML run report to this path")
	analyzeCmd.Flags().String("topics", "", "topic catalog YAML file")
	analyzeCmd.Flags().String("corpus", "", "reference corpus directory (.txt/.md files)")
	analyzeCmd.Flags().String("index", "", "SQLite chunk-index cache path")
	analyzeCmd.Flags().String("images", "", "question-image ZIP archive")
	analyzeCmd.Flags().String("knowledge-images", "", "knowledge-corpus image ZIP archive")
	analyzeCmd.Flags().String("model", "", "primary oracle model identifier")
	analyzeCmd.Flags().String("verifier-model", "", "verification oracle model identifier")
	analyzeCmd.Flags().Int("limit", 0, "process only the first N questions (0 = all)")
	analyzeCmd.Flags().Int("workers", 0, "concurrent question workers")
	analyzeCmd.Flags().Int("checkpoint-every", 0, "save the dataset after every N questions")
	analyzeCmd.Flags().Bool("resume", false, "skip questions already audited by this pipeline version")
	analyzeCmd.Flags().Bool("review", false, "enable the tertiary review pass")

	rootCmd.AddCommand(analyzeCmd)
}
