package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/examimport/internal/logging"
)

const (
	DefaultHookWorkers = 4
	DefaultHookTimeout = 30 * time.Second
)

// PostCommitHook runs once per attempt touched by a committed import.
type PostCommitHook struct {
	Name string
	Run  func(ctx context.Context, attemptID string) error
}

// AchievementHook evaluates achievements for each imported attempt.
func AchievementHook(checker AchievementChecker) PostCommitHook {
	return PostCommitHook{
		Name: "achievements",
		Run: func(ctx context.Context, attemptID string) error {
			unlocked, err := checker.CheckAchievementsForExam(ctx, attemptID)
			if err != nil {
				return err
			}
			if len(unlocked) > 0 {
				codes := make([]string, len(unlocked))
				for i, a := range unlocked {
					codes[i] = a.Code
				}
				logging.FromContext(ctx).Info("achievements unlocked", "codes", codes)
			}
			return nil
		},
	}
}

type hookRunner struct {
	hooks   []PostCommitHook
	workers int
	timeout time.Duration
}

func newHookRunner(hooks []PostCommitHook, workers int, timeout time.Duration) *hookRunner {
	if workers <= 0 {
		workers = DefaultHookWorkers
	}
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	return &hookRunner{hooks: hooks, workers: workers, timeout: timeout}
}

// run calls every hook for every attempt and waits for them. The import is
// already committed, so failures and panics are logged with the attempt id and
// dropped. Hooks run on a context detached from the request.
func (h *hookRunner) run(ctx context.Context, attemptIDs []string) {
	if len(h.hooks) == 0 || len(attemptIDs) == 0 {
		return
	}

	base := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(h.workers)

	for _, hook := range h.hooks {
		hook := hook
		for _, id := range attemptIDs {
			id := id
			g.Go(func() error {
				hctx := logging.ContextWith(base, "hook", hook.Name, "attempt_id", id)
				if err := h.call(hctx, hook, id); err != nil {
					logging.FromContext(hctx).Warn("post-commit hook failed", "error", err)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (h *hookRunner) call(ctx context.Context, hook PostCommitHook, attemptID string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("panic in post-commit hook", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return hook.Run(ctx, attemptID)
}
