package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/ghrelay/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// dispatchState is carried through the dispatch pipeline
type dispatchState struct {
	event *model.Event
	lines []string
}

// dispatchStep is one fallible pipeline step. Returning false ends the pipeline successfully.
type dispatchStep struct {
	name string
	run  func(ctx context.Context, st *dispatchState) (bool, error)
}

// Dispatcher renders webhook events and delivers them to the destination channel
type Dispatcher struct {
	renderer *Renderer
	sender   *ChannelSender
	steps    []dispatchStep
}

// NewDispatcher creates a new instance of Dispatcher
func NewDispatcher(renderer *Renderer, sender *ChannelSender) *Dispatcher {
	d := &Dispatcher{
		renderer: renderer,
		sender:   sender,
	}
	d.steps = []dispatchStep{
		{name: "classify", run: d.classify},
		{name: "render", run: d.render},
		{name: "deliver", run: d.deliver},
	}
	return d
}

// Dispatch processes a webhook event. Ignored and unknown events succeed without output.
// Only delivery failures are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.Event) error {
	logger := ctxlog.From(ctx).With(
		"delivery_id", event.ID,
		"kind", event.Kind,
		"repository", event.Repository,
	)
	ctx = ctxlog.With(ctx, logger)

	st := &dispatchState{event: event}
	for _, step := range d.steps {
		next, err := step.run(ctx, st)
		if err != nil {
			return goerr.Wrap(err, "failed to dispatch webhook event",
				goerr.V("step", step.name),
				goerr.V("delivery_id", event.ID),
			)
		}
		if !next {
			return nil
		}
	}

	logger.Info("Relayed webhook event", "lines", len(st.lines))
	return nil
}

func (d *Dispatcher) classify(ctx context.Context, st *dispatchState) (bool, error) {
	if st.event.Kind == model.EventKindUnknown {
		ctxlog.From(ctx).Info("Ignoring unsupported event type", "event_type", st.event.Label)
		return false, nil
	}

	if IsIgnored(st.event) {
		ctxlog.From(ctx).Debug("Ignoring noisy event action")
		return false, nil
	}
	return true, nil
}

func (d *Dispatcher) render(ctx context.Context, st *dispatchState) (bool, error) {
	st.lines = d.renderer.Render(ctx, st.event)
	return len(st.lines) > 0, nil
}

func (d *Dispatcher) deliver(ctx context.Context, st *dispatchState) (bool, error) {
	if err := d.sender.SendLines(ctx, st.lines); err != nil {
		return false, err
	}
	return true, nil
}
