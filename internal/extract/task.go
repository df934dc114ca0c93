package extract

import (
	"context"
	"fmt"
	"log/slog"
)

// Task is one chunk waiting to be sent to the model.
type Task struct {
	Index   int
	Content string
}

// Run renders the prompt, calls the generator once and parses the reply.
// Generator failures are returned as errors. Malformed replies become skips
// and are logged at warn. When tmpl.Screen is set, parsed records that fail
// ValidateSummary or ValidateEntry are skipped the same way.
func (t Task) Run(ctx context.Context, gen Generator, tmpl Template, log *slog.Logger) (Outcome, error) {
	reply, err := gen.Generate(ctx, tmpl.Render(t.Content))
	if err != nil {
		return Outcome{}, fmt.Errorf("chunk %d: %w", t.Index, err)
	}

	out := ParseReply(t.Index, reply, tmpl)
	if out.Skipped {
		if out.Reason == ReasonSkipToken {
			log.Info("chunk skipped", "chunk", t.Index)
		} else {
			log.Warn("reply rejected", "chunk", t.Index, "reason", out.Reason, "reply", truncate(reply, 200))
		}
		return out, nil
	}
	if !tmpl.Screen {
		return out, nil
	}

	switch {
	case out.Summary != nil:
		err = ValidateSummary(out.Summary)
	case out.Entry != nil:
		err = ValidateEntry(out.Entry)
	}
	if err != nil {
		log.Warn("reply rejected", "chunk", t.Index, "reason", err.Error())
		return Skip(t.Index, err.Error()), nil
	}
	return out, nil
}
