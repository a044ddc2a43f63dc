// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/exam-audit/internal/cluster"
	"github.com/pdiddy/exam-audit/internal/dataset"
	"github.com/pdiddy/exam-audit/pkg/types"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <dataset.json>",
	Short: "Cluster near-duplicate questions without running the oracle",
	Long: `Cluster groups questions by combined-text similarity and prints the
resulting partition. Useful for tuning thresholds before a full analyze
run: the same parameters drive the pipeline's text clustering.

With --abstractions, the oracle abstractions from a previous analyze run
are clustered instead, using the abstraction threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func runCluster(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalyzerConfig(cmd)
	if err != nil {
		return err
	}
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	questions, err := dataset.Load(args[0])
	if err != nil {
		return err
	}

	var docs []types.Document
	mergeThreshold := cfg.Cluster.TextThreshold
	if byAbstraction, _ := cmd.Flags().GetBool("abstractions"); byAbstraction {
		// Abstractions exist only on questions a previous run audited.
		mergeThreshold = cfg.Cluster.AbstractionThreshold
		for _, q := range questions {
			if q.Audit != nil && q.Audit.Abstraction != "" {
				docs = append(docs, types.Document{ID: q.ID, Text: q.Audit.Abstraction})
			}
		}
		if len(docs) == 0 {
			return fmt.Errorf("no audited abstractions in %s: run analyze first", args[0])
		}
	} else {
		docs = make([]types.Document, len(questions))
		for i, q := range questions {
			docs[i] = types.Document{ID: q.ID, Text: q.CombinedText()}
		}
	}
	if cmd.Flags().Changed("threshold") {
		mergeThreshold = threshold
	}
	result := cluster.Assign(docs, cluster.Params{
		Threshold:        mergeThreshold,
		HighThreshold:    cfg.Cluster.HighThreshold,
		RareTokenDF:      cfg.Cluster.RareTokenDF,
		CommonTokenRatio: cfg.Cluster.CommonTokenRatio,
		MinTokenLength:   cfg.Cluster.MinTokenLength,
	})

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Members)
	}

	ids := make([]int, 0, len(result.Members))
	for id := range result.Members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	groups := 0
	for _, id := range ids {
		members := result.Members[id]
		if len(members) < 2 {
			continue
		}
		groups++
		fmt.Printf("cluster %d (%d questions):\n", id, len(members))
		for _, qid := range members {
			fmt.Printf("  %s\n", qid)
		}
	}
	fmt.Printf("\n%d documents, %d clusters, %d with repeats\n",
		len(docs), len(result.Members), groups)
	return nil
}

func init() {
	clusterCmd.Flags().Float64("threshold", 0, "override the merge threshold")
	clusterCmd.Flags().Bool("abstractions", false, "cluster audited abstractions instead of question text")
	clusterCmd.Flags().Bool("json", false, "output the full partition as JSON")

	rootCmd.AddCommand(clusterCmd)
}
