// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/exam-audit/internal/imagehash"
	"github.com/pdiddy/exam-audit/pkg/types"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Inspect the question-image archive (cluster, match)",
	Long: `Images hashes every image in a question-image archive. Use cluster to
print the perceptual-hash clusters, and match to compare the archive
against a knowledge-corpus image archive.`,
}

var imagesClusterCmd = &cobra.Command{
	Use:   "cluster <archive.zip>",
	Short: "Cluster archive images by perceptual hash",
	Long: `Cluster prints the perceptual-hash partition of the archive. Images in
the same cluster are visually near-identical, which usually means the
same figure reused across repeated questions.`,
	Args: cobra.ExactArgs(1),
	RunE: runImagesCluster,
}

func runImagesCluster(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalyzerConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-hamming") {
		cfg.Images.MaxHamming, _ = cmd.Flags().GetInt("max-hamming")
	}

	store, err := imagehash.FromZip(args[0])
	if err != nil {
		return err
	}
	if store.Skipped > 0 {
		fmt.Printf("warning: %d unreadable images skipped\n", store.Skipped)
	}

	items := store.Items()
	clusters := imagehash.ClusterItems(items, cfg.Images.MaxHamming)

	ids := make([]string, 0, len(clusters.Members))
	for id := range clusters.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	shared := 0
	for _, id := range ids {
		members := clusters.Members[id]
		if len(members) < 2 {
			continue
		}
		shared++
		fmt.Printf("%s (%d images):\n", id, len(members))
		for _, stem := range members {
			entry, _ := store.ByStem(stem)
			fmt.Printf("  %s (%016x)\n", stem, entry.Hash)
		}
	}

	fmt.Printf("\n%d images, %d clusters, %d shared across questions\n",
		len(items), len(clusters.Members), shared)
	return nil
}

var imagesMatchCmd = &cobra.Command{
	Use:   "match <archive.zip> <knowledge.zip>",
	Short: "Match question images against knowledge-corpus images",
	Long: `Match compares every question image against the knowledge-corpus image
archive with the looser Hamming bound and prints the matches nearest
first, the same pairing the pipeline hands to the oracle.`,
	Args: cobra.ExactArgs(2),
	RunE: runImagesMatch,
}

func runImagesMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadAnalyzerConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-hamming") {
		cfg.Images.KnowledgeMaxHamming, _ = cmd.Flags().GetInt("max-hamming")
	}

	store, err := imagehash.FromZip(args[0])
	if err != nil {
		return err
	}
	corpusStore, err := imagehash.FromZip(args[1])
	if err != nil {
		return err
	}

	var corpus []types.KnowledgeImage
	for _, it := range corpusStore.Items() {
		corpus = append(corpus, types.KnowledgeImage{
			ImageID: it.ID,
			Source:  args[1],
			Hash:    it.Hash,
		})
	}

	matches := imagehash.MatchKnowledge(store.Items(), corpus, cfg.Images.KnowledgeMaxHamming)

	qids := make([]string, 0, len(matches))
	for qid := range matches {
		qids = append(qids, qid)
	}
	sort.Strings(qids)

	total := 0
	for _, qid := range qids {
		fmt.Printf("%s:\n", qid)
		for _, m := range matches[qid] {
			fmt.Printf("  %s -> %s (distance %d)\n",
				m.QuestionImageRef, m.KnowledgeImageID, m.HammingDistance)
			total++
		}
	}
	fmt.Printf("\n%d question images, %d questions matched, %d matches\n",
		store.Len(), len(qids), total)
	return nil
}

func init() {
	imagesCmd.PersistentFlags().Int("max-hamming", 0, "override the Hamming bound")

	imagesCmd.AddCommand(imagesClusterCmd)
	imagesCmd.AddCommand(imagesMatchCmd)

	rootCmd.AddCommand(imagesCmd)
}
