package agents

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/reporover/backend/internal/util"
	"github.com/reporover/backend/pkg/ai"
	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"
	"github.com/reporover/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

const annotatorSystemPrompt = "You are a senior software engineer. " +
	"Summarize the purpose of the given code unit in two or three plain sentences. " +
	"Describe what it does and how it is used, not its syntax."

// summaryRetries bounds attempts per entity before the failure is counted.
const summaryRetries = 3

// Annotator walks the entity store after ingestion and fills in missing
// summaries with AI-generated descriptions. When an episodic log is given,
// each pass records its start and outcome there.
type Annotator struct {
	knowledge *store.KnowledgeStore
	aiClient  ai.Client
	episodic  store.InteractionStore

	concurrency int
}

func NewAnnotator(knowledge *store.KnowledgeStore, aiClient ai.Client, episodic store.InteractionStore, concurrency int) *Annotator {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Annotator{
		knowledge:   knowledge,
		aiClient:    aiClient,
		episodic:    episodic,
		concurrency: concurrency,
	}
}

func (a *Annotator) Name() string {
	return "annotator"
}

// Execute summarizes every entity that carries code but no summary yet.
// Individual summarization failures are logged and counted, not fatal.
func (a *Annotator) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	entities, err := a.knowledge.GetAllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	a.record(ctx, common.InteractionThought, fmt.Sprintf("Starting annotation pass over %d entities.", len(entities)), nil)

	var annotated, failed atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)

	for _, entity := range entities {
		if entity.Summary != "" || (entity.Code == "" && entity.Details == "") {
			continue
		}

		group.Go(func() error {
			content := entity.Code
			if content == "" {
				content = entity.Details
			}

			prompt := fmt.Sprintf("Entity %s (%s) from %s:\n\n%s", entity.UniqueID, entity.Type, entity.Source, content)
			summary, err := util.RetryWithContext(groupCtx, summaryRetries, func(rctx context.Context) (string, error) {
				return a.aiClient.GenerateCompletion(rctx, prompt, ai.WithSystemPrompts(annotatorSystemPrompt))
			})
			if err != nil {
				logger.Error("[Agents][Annotator] Summarization failed", "id", entity.UniqueID, "error", err)
				failed.Add(1)
				return nil
			}

			if err := a.knowledge.UpdateSummary(groupCtx, entity.UniqueID, summary); err != nil {
				logger.Error("[Agents][Annotator] Summary write failed", "id", entity.UniqueID, "error", err)
				failed.Add(1)
				return nil
			}
			annotated.Add(1)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	logger.Info("[Agents][Annotator] Annotation pass finished", "annotated", annotated.Load(), "failed", failed.Load())
	a.record(ctx, common.InteractionAction,
		fmt.Sprintf("Annotation pass complete: %d annotated, %d failed.", annotated.Load(), failed.Load()),
		map[string]any{"annotated": int(annotated.Load()), "failed": int(failed.Load())},
	)
	return map[string]any{
		"status":    StatusSuccess,
		"annotated": int(annotated.Load()),
		"failed":    int(failed.Load()),
	}, nil
}

func (a *Annotator) record(ctx context.Context, interactionType, content string, metadata map[string]any) {
	if a.episodic == nil {
		return
	}
	err := a.episodic.AddInteraction(ctx, common.Interaction{
		AgentName: a.Name(),
		Type:      interactionType,
		Content:   content,
		Metadata:  metadata,
	})
	if err != nil {
		logger.Warn("[Agents][Annotator] Interaction log write failed", "error", err)
	}
}
