package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/perchfield/sidequest/internal/cache"
	"github.com/perchfield/sidequest/internal/knowledge"
	"github.com/perchfield/sidequest/internal/observe"
	"github.com/perchfield/sidequest/internal/stage"
	"github.com/perchfield/sidequest/internal/state"
	"github.com/perchfield/sidequest/internal/transcript"
	"github.com/perchfield/sidequest/pkg/provider/llm"
)

// coachPromptFmt is the system prompt of the generation stage. The first
// verb matters: answers are spoken aloud, so they have to be short.
const coachPromptFmt = `You are a friendly, knowledgeable companion for a player of %s.
Answer their spoken questions in one to three short sentences, as if sitting
next to them. Never read lists aloud; summarize. Use the game state and the
reference entries below when they are relevant, and say so plainly when you
do not know something.`

// ungroundedNote is appended to the system prompt when the knowledge store
// is unreachable, so the model hedges instead of inventing specifics.
const ungroundedNote = `The reference library is currently unreachable. Answer from general
knowledge only and tell the player you are not fully certain.`

const (
	answerTemperature = 0.4
	answerMaxTokens   = 300
)

// runTurn executes one turn end to end: stop recording, transcribe, consult
// the cache, retrieve, generate, synthesize, play. Any stage error moves the
// machine to StateFailed, speaks the fallback line best-effort, and returns
// to StateIdle.
func (o *Orchestrator) runTurn(ctx context.Context, p *pendingTurn) {
	start := time.Now()
	o.metrics.TurnsInFlight.Add(ctx, 1)
	defer o.metrics.TurnsInFlight.Add(ctx, -1)

	ctx, span := observe.StartSpan(ctx, "turn")
	defer span.End()
	logger := o.logger.With("correlation_id", observe.CorrelationID(ctx))

	status, err := o.pipeline(ctx, p, logger)
	o.metrics.RecordTurn(ctx, status, time.Since(start).Seconds())

	if err != nil {
		logger.Error("turn failed", "stage", string(stage.KindOf(err)), "error", err)
		o.st.Store(int32(StateFailed))
		o.speakFallback(ctx, logger)
	} else {
		logger.Info("turn finished", "status", status, "duration", time.Since(start))
	}
	o.st.Store(int32(StateIdle))
}

// pipeline runs the stages and returns the turn status: "ok", "cached",
// "empty", or "failed" with the stage-tagged error.
func (o *Orchestrator) pipeline(ctx context.Context, p *pendingTurn, logger *slog.Logger) (string, error) {
	wav, err := o.recorder.Stop()
	if err != nil {
		return "failed", stage.NewError(stage.KindCapture, fmt.Errorf("stop recording: %w", err))
	}

	var text string
	err = o.runStage(ctx, StateTranscribing, stage.KindTranscription, o.timeouts.Transcribe, func(sctx context.Context) error {
		var terr error
		text, terr = o.sttP.Transcribe(sctx, wav)
		return terr
	})
	if err != nil {
		return "failed", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		logger.Debug("empty transcript, dropping turn")
		return "empty", nil
	}

	if corrector := o.currentCorrector(); corrector != nil {
		corrected, fixes := corrector.Correct(text)
		for _, fix := range fixes {
			logger.Debug("transcript corrected", "heard", fix.Original, "term", fix.Corrected)
		}
		text = corrected
	}

	key := cache.Key{
		Query:       transcript.Normalize(text),
		Fingerprint: p.snapshot.Fingerprint(),
	}

	if o.answers != nil {
		if entry, ok := o.answers.Lookup(key); ok {
			o.metrics.RecordCacheLookup(ctx, true)
			logger.Debug("cache hit", "fingerprint", key.Fingerprint)
			if err := o.speak(ctx, entry.Answer); err != nil {
				return "failed", err
			}
			o.remember(text, entry.Answer)
			return "cached", nil
		}
		o.metrics.RecordCacheLookup(ctx, false)
	}

	var results []knowledge.Scored
	degraded := false
	if o.searcher != nil && o.topK > 0 {
		filter := retrievalFilter(p.snapshot)
		err = o.runStage(ctx, StateRetrieving, stage.KindRetrieval, o.timeouts.Retrieve, func(sctx context.Context) error {
			var rerr error
			results, rerr = o.searcher.Search(sctx, text, filter, o.topK)
			if rerr == nil && len(results) == 0 && !filter.Empty() {
				// The location names no region the library indexes; widen
				// to an unfiltered search.
				results, rerr = o.searcher.Search(sctx, text, knowledge.Filter{}, o.topK)
			}
			return rerr
		})
		if err != nil {
			// An unreachable store degrades the answer instead of failing
			// the turn.
			if errors.Is(err, knowledge.ErrUnavailable) {
				degraded = true
				results = nil
				logger.Warn("knowledge unavailable, answering ungrounded", "error", err)
			} else {
				return "failed", err
			}
		}
	}

	var answer string
	err = o.runStage(ctx, StateGenerating, stage.KindGeneration, o.timeouts.Generate, func(sctx context.Context) error {
		var gerr error
		answer, gerr = o.generate(sctx, p, text, results, degraded)
		return gerr
	})
	if err != nil {
		return "failed", err
	}

	if err := o.speak(ctx, answer); err != nil {
		return "failed", err
	}

	o.remember(text, answer)
	if o.answers != nil {
		o.answers.Store(key, answer)
	}
	return "ok", nil
}

// retrievalFilter narrows retrieval to the player's current region. The
// tracker's location usually names a region the library indexes; when it
// does not, the filtered pass comes back empty and the caller widens out.
func retrievalFilter(s *state.GameState) knowledge.Filter {
	if s == nil || s.Location == "" {
		return knowledge.Filter{}
	}
	return knowledge.Filter{Regions: []string{s.Location}}
}

// generate builds the prompt bundle (persona, game state, retrieved entries,
// history, question, optional screenshot) and calls the model.
func (o *Orchestrator) generate(ctx context.Context, p *pendingTurn, question string, results []knowledge.Scored, degraded bool) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, coachPromptFmt, o.gameTitle)

	if p.snapshot != nil {
		sb.WriteString("\n\nCurrent game state:\n")
		sb.WriteString("Location: " + p.snapshot.Location + "\n")
		if p.snapshot.Scene != "" {
			sb.WriteString("Scene: " + p.snapshot.Scene + "\n")
		}
		if len(p.snapshot.Inventory) > 0 {
			sb.WriteString("Inventory: " + strings.Join(p.snapshot.Inventory, ", ") + "\n")
		}
		for k, v := range p.snapshot.Stats {
			sb.WriteString(k + ": " + v + "\n")
		}
	}

	if len(results) > 0 {
		sb.WriteString("\nReference entries:\n")
		for _, sc := range results {
			sb.WriteString("\n")
			sb.WriteString(sc.Entry.Document())
		}
	}
	if degraded {
		sb.WriteString("\n\n")
		sb.WriteString(ungroundedNote)
	}

	var msgs []llm.Message
	for _, ex := range o.History() {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: ex.Question},
			llm.Message{Role: "assistant", Content: ex.Answer},
		)
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: question})

	req := llm.Request{
		System:      sb.String(),
		Messages:    msgs,
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	}
	if len(p.image) > 0 && o.gen.Capabilities().SupportsVision {
		req.Image = p.image
		req.ImageMIME = "image/png"
	}

	resp, err := o.gen.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}
	return answer, nil
}

// speak synthesizes text and plays it. Both halves are stage-tagged.
func (o *Orchestrator) speak(ctx context.Context, text string) error {
	var pcm []byte
	err := o.runStage(ctx, StateSynthesizing, stage.KindSynthesis, o.timeouts.Synthesize, func(sctx context.Context) error {
		var serr error
		pcm, serr = o.ttsP.Synthesize(sctx, text)
		return serr
	})
	if err != nil {
		return err
	}

	// Playback is bounded by the audio length; no timeout.
	return o.runStage(ctx, StatePlaying, stage.KindPlayback, 0, func(sctx context.Context) error {
		return o.player.Play(sctx, pcm)
	})
}

// speakFallback voices the failure line best-effort. Nothing is spoken when
// the turn was cancelled by shutdown, and a failing fallback just logs.
func (o *Orchestrator) speakFallback(ctx context.Context, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	sctx := ctx
	if o.timeouts.Synthesize > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, o.timeouts.Synthesize)
		defer cancel()
	}
	pcm, err := o.ttsP.Synthesize(sctx, o.fallbackLine())
	if err != nil {
		logger.Debug("fallback synthesis failed", "error", err)
		return
	}
	if err := o.player.Play(ctx, pcm); err != nil {
		logger.Debug("fallback playback failed", "error", err)
	}
}

// runStage advances the state machine, applies the stage timeout, times the
// call, and tags any error with the stage kind.
func (o *Orchestrator) runStage(ctx context.Context, s State, kind stage.Kind, timeout time.Duration, fn func(context.Context) error) error {
	o.st.Store(int32(s))
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, span := observe.StartSpan(ctx, "turn."+string(kind))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	o.metrics.RecordStage(ctx, kind, time.Since(start).Seconds(), err)
	if err != nil {
		return stage.NewError(kind, err)
	}
	return nil
}

// remember appends an exchange, dropping the oldest past the history limit.
func (o *Orchestrator) remember(question, answer string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, Exchange{Question: question, Answer: answer, At: time.Now()})
	if len(o.history) > o.historyLimit {
		o.history = o.history[len(o.history)-o.historyLimit:]
	}
}
