package async

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/ghrelay/pkg/utils/errs"
)

// Go runs task in its own goroutine under a context detached from ctx's
// cancellation. The logger and Sentry hub carried by ctx are kept. A returned
// error or a panic is reported through errs.Handle tagged with the task name.
func Go(ctx context.Context, name string, task func(ctx context.Context) error) {
	taskCtx := detach(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := goerr.New(fmt.Sprintf("panic in background task: %v", r),
					goerr.V("task", name),
					goerr.V("stack", string(debug.Stack())),
				)
				errs.Handle(taskCtx, err)
			}
		}()

		if err := task(taskCtx); err != nil {
			errs.Handle(taskCtx, goerr.Wrap(err, "background task failed", goerr.V("task", name)))
		}
	}()
}

func detach(ctx context.Context) context.Context {
	newCtx := ctxlog.With(context.Background(), ctxlog.From(ctx).With("task_origin", "async"))
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		newCtx = sentry.SetHubOnContext(newCtx, hub)
	}
	return newCtx
}
