package agent

import (
	"context"
	"strings"

	"github.com/harun/agentcore/internal/tracing"
	"github.com/harun/agentcore/pkg/eventstream"
	"go.opentelemetry.io/otel/attribute"
)

// acquire performs one model call. Streaming and blocking calls look the
// same to the caller: both surface content as message_update deltas, the
// blocking path as a single delta carrying the whole reply.
func (l *Loop) acquire(ctx context.Context, rc *runContext, req Request) (*Response, error) {
	var streamed strings.Builder
	sink := func(delta string) {
		streamed.WriteString(delta)
		rc.emit(eventstream.Event{Type: eventstream.EventMessageUpdate, Delta: delta})
	}

	callCtx, span := tracing.StartSpan(tracing.WithTurn(ctx, rc.turn), tracing.TracerAgent, "agent.model_call",
		attribute.String("model", req.Model),
		attribute.Bool("streaming", l.config.Streaming),
		attribute.Int("messages", len(req.Messages)),
	)

	var resp *Response
	var err error
	if l.config.Streaming {
		resp, err = l.client.StreamComplete(callCtx, req, sink)
	} else {
		resp, err = l.client.Complete(callCtx, req)
		if err == nil && resp != nil && resp.Content != "" {
			sink(resp.Content)
		}
	}
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	if resp == nil {
		if streamed.Len() == 0 {
			return nil, ErrNoResponse
		}
		return &Response{Content: streamed.String()}, nil
	}
	out := *resp
	if out.Content == "" && streamed.Len() > 0 {
		out.Content = streamed.String()
	}
	return &out, nil
}
