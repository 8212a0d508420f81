// ABOUTME: Concurrent tool execution for one conversation step.
// ABOUTME: Fans calls out on an errgroup with a parallelism limit and returns results in call order.

package agent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/2389/missionlink-gateway/internal/llm"
	"github.com/2389/missionlink-gateway/internal/packs"
)

// executeAll runs every call and waits for all of them. The router turns
// failures into text, so no call can abort its siblings.
func executeAll(ctx context.Context, router ToolRouter, calls []llm.ToolCall, limit int) []*packs.Invocation {
	results := make([]*packs.Invocation, len(calls))
	if len(calls) == 1 {
		results[0] = router.Execute(ctx, calls[0])
		return results
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = router.Execute(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
