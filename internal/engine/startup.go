package engine

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that a local engine is reachable and the embedding
// model is available, pulling it with progress written to w when missing.
// Hosted engines (no Prober/ModelManager) are accepted as-is.
func EnsureReady(ctx context.Context, e Engine, model string, w io.Writer) error {
	if p, ok := e.(Prober); ok && !p.IsRunning(ctx) {
		return fmt.Errorf("%s embedding backend is not running", e.Name())
	}

	mm, ok := e.(ModelManager)
	if !ok || model == "" {
		return nil
	}
	if mm.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: ready\n", model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", model)
	err := mm.PullModel(ctx, model, func(p PullProgress) {
		if p.Total > 0 {
			pct := float64(p.Completed) / float64(p.Total) * 100
			fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
