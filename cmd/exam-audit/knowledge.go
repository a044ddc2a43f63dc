// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/exam-audit/internal/knowledge"
	"github.com/pdiddy/exam-audit/pkg/types"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the reference-corpus index (index, retrieve)",
	Long: `Knowledge manages the BM25 chunk index built from the reference corpus.
Use index to build or refresh the SQLite cache, and retrieve to query it
the same way the pipeline does per question.`,
}

var knowledgeIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the corpus chunk index",
	Long: `Index splits every .txt/.md file under the corpus directory into
chunks and writes the chunk index to the SQLite cache. An unchanged
corpus is a no-op; the cache key is a hash over the corpus content.`,
	RunE: runKnowledgeIndex,
}

func runKnowledgeIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalyzerConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Knowledge.CorpusDir == "" {
		return fmt.Errorf("no corpus directory: set knowledge.corpus_dir or --corpus")
	}

	docs, err := knowledge.LoadCorpusDir(cfg.Knowledge.CorpusDir)
	if err != nil {
		return err
	}

	index, err := knowledge.BuildOrLoad(cfg.Knowledge, docs, nil, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d chunks from %d corpus files\n", index.Len(), len(docs))
	return nil
}

var knowledgeRetrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Query the corpus index with BM25 retrieval",
	Long: `Retrieve runs the same BM25 ranking and diversity selection the
pipeline uses for evidence, and prints the selected snippets with their
scores and the overall retrieval quality.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKnowledgeRetrieve,
}

func runKnowledgeRetrieve(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalyzerConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Knowledge.CorpusDir == "" {
		return fmt.Errorf("no corpus directory: set knowledge.corpus_dir or --corpus")
	}

	docs, err := knowledge.LoadCorpusDir(cfg.Knowledge.CorpusDir)
	if err != nil {
		return err
	}
	index, err := knowledge.BuildOrLoad(cfg.Knowledge, docs, nil, os.Stderr)
	if err != nil {
		return err
	}

	query := knowledge.Query{QuestionText: strings.Join(args, " ")}
	params := knowledge.Params{
		TopK:     cfg.Knowledge.TopK,
		MaxChars: cfg.Knowledge.MaxChars,
		MinScore: cfg.Knowledge.MinScore,
	}
	evidence, quality := index.Retrieve(query, params)

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Evidence []types.EvidenceItem `json:"evidence"`
			Quality  float64              `json:"retrievalQuality"`
		}{evidence, quality})
	}

	if len(evidence) == 0 {
		fmt.Println("No matching chunks.")
		return nil
	}
	for i, ev := range evidence {
		fmt.Printf("%d. [%.4f] %s", i+1, ev.Score, ev.Source)
		if ev.Page > 0 {
			fmt.Printf(" p.%d", ev.Page)
		}
		fmt.Printf("\n   %s\n", ev.Text)
	}
	fmt.Printf("\n%d snippets, retrieval quality %.4f\n", len(evidence), quality)
	return nil
}

var knowledgeExportCmd = &cobra.Command{
	Use:   "export <output-file>",
	Short: "Export the chunk index to YAML or JSON",
	Long: `Export writes every indexed chunk (id, source, page, content) to the
given file. The format follows the file extension: .json for JSON,
anything else for YAML.`,
	Args: cobra.ExactArgs(1),
	RunE: runKnowledgeExport,
}

func runKnowledgeExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalyzerConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Knowledge.CorpusDir == "" {
		return fmt.Errorf("no corpus directory: set knowledge.corpus_dir or --corpus")
	}

	docs, err := knowledge.LoadCorpusDir(cfg.Knowledge.CorpusDir)
	if err != nil {
		return err
	}
	index, err := knowledge.BuildOrLoad(cfg.Knowledge, docs, nil, os.Stderr)
	if err != nil {
		return err
	}

	out := args[0]
	var data []byte
	if strings.HasSuffix(out, ".json") {
		data, err = json.MarshalIndent(index.Chunks(), "", "  ")
	} else {
		data, err = yaml.Marshal(index.Chunks())
	}
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Printf("Exported %d chunks to %s\n", index.Len(), out)
	return nil
}

func init() {
	knowledgeCmd.PersistentFlags().String("corpus", "", "reference corpus directory (.txt/.md files)")
	knowledgeCmd.PersistentFlags().String("index", "", "SQLite chunk-index cache path")

	knowledgeRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	knowledgeCmd.AddCommand(knowledgeIndexCmd)
	knowledgeCmd.AddCommand(knowledgeRetrieveCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)

	rootCmd.AddCommand(knowledgeCmd)
}
