// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pdiddy/exam-audit/internal/cluster"
	"github.com/pdiddy/exam-audit/internal/dataset"
	"github.com/pdiddy/exam-audit/internal/imagehash"
	"github.com/pdiddy/exam-audit/internal/knowledge"
	"github.com/pdiddy/exam-audit/internal/oracle"
	"github.com/pdiddy/exam-audit/internal/topics"
	"github.com/pdiddy/exam-audit/pkg/types"
)

// Options assembles a pipeline run. Index, Catalog, and ImageStore are
// optional; absent collaborators degrade the run instead of failing it.
type Options struct {
	Config  types.AnalyzerConfig
	Oracle  *oracle.Oracle
	Catalog *topics.Catalog
	Index   *knowledge.Index

	// ImageStore holds the question-image archive. Nil when no archive
	// is configured.
	ImageStore *imagehash.Store

	// CheckpointPath receives intermediate and final dataset saves.
	// Empty disables persistence.
	CheckpointPath string
}

// Pipeline runs the batch analysis over a dataset.
type Pipeline struct {
	cfg     types.AnalyzerConfig
	oracle  *oracle.Oracle
	catalog *topics.Catalog
	index   *knowledge.Index
	images  *imagehash.Store
	ckPath  string
}

// New validates the configuration and builds a pipeline.
func New(opts Options) (*Pipeline, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Oracle == nil {
		return nil, fmt.Errorf("pipeline requires an oracle")
	}
	index := opts.Index
	if index == nil {
		index = knowledge.NewIndex(nil, nil)
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = topics.NewCatalog(nil)
	}
	return &Pipeline{
		cfg:     opts.Config,
		oracle:  opts.Oracle,
		catalog: catalog,
		index:   index,
		images:  opts.ImageStore,
		ckPath:  opts.CheckpointPath,
	}, nil
}

// Run analyzes the dataset in place: clustering first, then the
// per-question passes on a bounded worker pool, then cross-question
// reconstruction. Progress goes to w. The returned report summarizes
// the run even when ctx is cancelled partway.
func (p *Pipeline) Run(ctx context.Context, questions []*types.Question, w io.Writer) (*Report, error) {
	work := questions
	if limit := p.cfg.Pipeline.Limit; limit > 0 && limit < len(work) {
		work = work[:limit]
	}

	textClusters := p.clusterTexts(work)
	imageClusters, imageMatches, hasImages := p.clusterImages(work, w)

	analyzer := &Analyzer{
		cfg:          p.cfg,
		oracle:       p.oracle,
		catalog:      p.catalog,
		candidates:   topics.NewCandidateIndex(p.catalog),
		index:        p.index,
		imageMatches: imageMatches,
		hasImages:    hasImages,
	}

	report := NewReport(len(work))

	var (
		mu        sync.Mutex
		processed int
		runErr    error
	)
	jobs := make(chan *types.Question)
	var wg sync.WaitGroup

	workers := p.cfg.Pipeline.Workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range jobs {
				res, err := analyzer.analyzeQuestion(ctx, q)

				// Attaching the audit and applying the verified change
				// happen under the same lock as checkpointing, so a
				// checkpoint only ever marshals settled questions.
				mu.Lock()
				if err != nil {
					if runErr == nil {
						runErr = err
					}
					mu.Unlock()
					continue
				}
				q.Audit = res.audit
				if res.appliedIndices != nil {
					applyCorrectIndices(q, res.appliedIndices)
				}
				processed++
				report.Observe(q)
				fmt.Fprintf(w, "processed %s status=%s conf=%.2f\n",
					q.ID, q.Audit.Status, q.Audit.FinalCombinedConfidence)
				if p.ckPath != "" && p.cfg.Pipeline.CheckpointEvery > 0 &&
					processed%p.cfg.Pipeline.CheckpointEvery == 0 {
					if err := dataset.Save(p.ckPath, questions); err != nil {
						fmt.Fprintf(w, "warning: checkpoint failed: %v\n", err)
					}
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, q := range work {
		if p.cfg.Pipeline.Resume && q.Audit != nil &&
			q.Audit.Status == types.AuditCompleted && q.Audit.PipelineVersion == Version {
			fmt.Fprintf(w, "skipped %s (already completed)\n", q.ID)
			report.Resumed++
			continue
		}
		select {
		case jobs <- q:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	// Cross-question annotations only make sense over whatever audits
	// exist, cancelled run or not.
	abstractionClusters := p.clusterAbstractions(work)
	for _, q := range work {
		if q.Audit == nil {
			continue
		}
		q.Audit.Clusters = types.ClusterRefs{
			TextClusterID:        textClusters.Assignment[q.ID],
			AbstractionClusterID: abstractionClusters[q.ID],
			ImageClusterIDs:      imageClusters[q.ID],
		}
		if p.cfg.Pipeline.WriteTopLevel {
			dataset.WriteTopLevel(q)
		}
	}

	report.Repeats = ComputeRepeatSuggestions(work)

	if p.ckPath != "" {
		if err := dataset.Save(p.ckPath, questions); err != nil && runErr == nil {
			runErr = err
		}
	}

	report.Write(w)
	return report, runErr
}

// clusterTexts groups questions by combined-text similarity.
func (p *Pipeline) clusterTexts(questions []*types.Question) cluster.Result {
	docs := make([]types.Document, len(questions))
	for i, q := range questions {
		docs[i] = types.Document{ID: q.ID, Text: q.CombinedText()}
	}
	return cluster.Assign(docs, cluster.Params{
		Threshold:        p.cfg.Cluster.TextThreshold,
		HighThreshold:    p.cfg.Cluster.HighThreshold,
		RareTokenDF:      p.cfg.Cluster.RareTokenDF,
		CommonTokenRatio: p.cfg.Cluster.CommonTokenRatio,
		MinTokenLength:   p.cfg.Cluster.MinTokenLength,
	})
}

// clusterAbstractions groups questions by their oracle abstractions.
// Runs after the per-question passes because abstractions come from the
// primary verdict.
func (p *Pipeline) clusterAbstractions(questions []*types.Question) map[string]int {
	var docs []types.Document
	for _, q := range questions {
		if q.Audit != nil && q.Audit.Abstraction != "" {
			docs = append(docs, types.Document{ID: q.ID, Text: q.Audit.Abstraction})
		}
	}
	if len(docs) == 0 {
		return nil
	}
	result := cluster.Assign(docs, cluster.Params{
		Threshold:        p.cfg.Cluster.AbstractionThreshold,
		HighThreshold:    p.cfg.Cluster.HighThreshold,
		RareTokenDF:      p.cfg.Cluster.RareTokenDF,
		CommonTokenRatio: p.cfg.Cluster.CommonTokenRatio,
		MinTokenLength:   p.cfg.Cluster.MinTokenLength,
	})
	return result.Assignment
}

// clusterImages hashes and clusters the question-image archive and
// matches images against knowledge-corpus figures.
func (p *Pipeline) clusterImages(questions []*types.Question, w io.Writer) (map[string][]string, map[string][]types.ImageMatch, map[string]bool) {
	hasImages := make(map[string]bool, len(questions))
	if p.images == nil {
		return nil, nil, hasImages
	}

	for _, q := range questions {
		if len(q.ImageFiles) == 0 && len(q.ImageURLs) == 0 {
			continue
		}
		missing := p.images.MissingRefs(q.ImageFiles)
		hasImages[q.ID] = len(missing) == 0 && len(p.images.ForQuestion(q.ID)) > 0
	}

	items := p.images.Items()
	clusters := imagehash.ClusterItems(items, p.cfg.Images.MaxHamming)
	matches := imagehash.MatchKnowledge(items, p.index.Images(), p.cfg.Images.KnowledgeMaxHamming)

	if p.images.Skipped > 0 {
		fmt.Fprintf(w, "warning: %d unreadable images skipped\n", p.images.Skipped)
	}
	fmt.Fprintf(w, "image clusters: %d over %d images\n", len(clusters.Members), len(items))

	return clusters.ParentClusters, matches, hasImages
}
