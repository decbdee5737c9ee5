// Package renderpass turns a loaded note into render-ready items. Each call
// to Run is one pass with its own speaker resolver, so palette colors are
// assigned from the start of the document every time.
package renderpass

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/note"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
	"github.com/otherjamesbrown/speech-bubbles/pkg/speakers"
	"github.com/otherjamesbrown/speech-bubbles/pkg/transcript"
)

// ItemKind identifies what an Item renders as.
type ItemKind string

const (
	ItemBubble        ItemKind = "bubble"
	ItemDateSeparator ItemKind = "date-separator"
	ItemRegularText   ItemKind = "regular-text"
)

// BubbleView is a bubble with its speaker styling resolved.
type BubbleView struct {
	Name      string                `json:"name" yaml:"name"`
	Side      speakers.Side         `json:"side" yaml:"side"`
	Owner     bool                  `json:"owner" yaml:"owner"`
	Color     speakers.SpeakerColor `json:"color" yaml:"color"`
	Icon      *speakers.Icon        `json:"icon,omitempty" yaml:"icon,omitempty"`
	Timestamp *transcript.Timestamp `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Message   []transcript.Node     `json:"message" yaml:"message"`
}

// Item is one rendered line. Exactly one payload field is set, matching Kind.
type Item struct {
	Kind          ItemKind                  `json:"type" yaml:"type"`
	Bubble        *BubbleView               `json:"bubble,omitempty" yaml:"bubble,omitempty"`
	DateSeparator *transcript.DateSeparator `json:"date_separator,omitempty" yaml:"date_separator,omitempty"`
	Regular       []transcript.Node         `json:"regular,omitempty" yaml:"regular,omitempty"`
}

// BlockResult is the outcome for one note block. Blocks that hold no bubble
// and no date separator are not transcripts and render as their source.
type BlockResult struct {
	Index      int            `json:"index" yaml:"index"`
	Kind       note.BlockKind `json:"kind" yaml:"kind"`
	StartLine  int            `json:"start_line" yaml:"start_line"`
	Source     string         `json:"source" yaml:"source"`
	Transcript bool           `json:"transcript" yaml:"transcript"`
	Items      []Item         `json:"items,omitempty" yaml:"items,omitempty"`
}

// Stats summarizes a pass.
type Stats struct {
	Lines          int      `json:"lines" yaml:"lines"`
	Bubbles        int      `json:"bubbles" yaml:"bubbles"`
	DateSeparators int      `json:"date_separators" yaml:"date_separators"`
	RegularText    int      `json:"regular_text" yaml:"regular_text"`
	Speakers       []string `json:"speakers" yaml:"speakers"`
}

// Result is the output of a render pass.
type Result struct {
	PassID   string            `json:"pass_id" yaml:"pass_id"`
	Path     string            `json:"path" yaml:"path"`
	Enabled  bool              `json:"enabled" yaml:"enabled"`
	Forced   bool              `json:"forced" yaml:"forced"`
	Settings settings.Settings `json:"settings" yaml:"settings"`
	Blocks   []BlockResult     `json:"blocks" yaml:"blocks"`
	Stats    Stats             `json:"stats" yaml:"stats"`
}

// Option configures a render pass.
type Option func(*options)

type options struct {
	force    bool
	passID   string
	logger   logging.Logger
	tracer   *observability.Tracer
	recorder *observability.MetricsRecorder
}

// WithForce renders notes that lack the transcript tag.
func WithForce() Option {
	return func(o *options) {
		o.force = true
	}
}

// WithPassID sets the pass id instead of generating one.
func WithPassID(id string) Option {
	return func(o *options) {
		o.passID = id
	}
}

// WithLogger sets the logger used for pass diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer *observability.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder *observability.MetricsRecorder) Option {
	return func(o *options) {
		o.recorder = recorder
	}
}

// Run executes one render pass over doc.
// It returns an error wrapping errors.ErrDisabled when the note is not
// tagged as a transcript and WithForce is not given.
func Run(ctx context.Context, doc *note.Document, s settings.Settings, opts ...Option) (*Result, error) {
	o := &options{
		logger: logging.MustGlobal(),
		tracer: observability.NewTracer(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.passID == "" {
		o.passID = uuid.NewString()
	}

	start := time.Now()
	ctx = context.WithValue(ctx, logging.PassIDKey, o.passID)
	ctx, span := o.tracer.StartPassSpan(ctx, o.passID, doc.Path)
	defer span.End()
	spanHelper := observability.NewSpanHelper(span)
	spanHelper.SetForced(o.force)

	log := o.logger.WithContext(ctx).With(logging.F("note", doc.Path))
	debug := func(msg string, fields ...logging.Field) {
		if s.DebugLogging {
			log.Debug(msg, fields...)
		}
	}

	enabled := doc.Enabled()
	if !enabled && !o.force {
		err := fmt.Errorf("%s: %w", doc.Path, pferrors.ErrDisabled)
		debug("Note not tagged as transcript, skipping")
		spanHelper.SetError(err, string(pferrors.ErrCodeNoteDisabled), false)
		o.recorder.RecordPassCompletion(observability.StatusDisabled, time.Since(start).Seconds(), 0)
		return nil, err
	}

	resolver := speakers.NewResolver(speakers.ResolveConfig(s, doc.Meta))
	debug("Render pass started",
		logging.F("blocks", len(doc.Blocks)),
		logging.F("speaker_configs", len(resolver.Config().SpeakerConfigs)),
		logging.F("forced", o.force))

	result := &Result{
		PassID:   o.passID,
		Path:     doc.Path,
		Enabled:  enabled,
		Forced:   o.force,
		Settings: s,
		Blocks:   make([]BlockResult, 0, len(doc.Blocks)),
		Stats:    Stats{Speakers: make([]string, 0)},
	}
	seen := make(map[string]bool)

	for _, block := range doc.Blocks {
		if err := ctx.Err(); err != nil {
			spanHelper.SetError(err, string(pferrors.CodeOf(err)), false)
			o.recorder.RecordPassCompletion(observability.StatusError, time.Since(start).Seconds(), 0)
			return nil, err
		}

		br := BlockResult{
			Index:     block.Index,
			Kind:      block.Kind,
			StartLine: block.StartLine,
			Source:    block.Source,
		}
		if block.Kind == note.BlockParagraph {
			br.Items = runBlock(ctx, o, resolver, block, result, seen)
			br.Transcript = hasTranscriptItems(br.Items)
			debug("Block parsed",
				logging.F("block", block.Index),
				logging.F("items", len(br.Items)),
				logging.F("transcript", br.Transcript))
		}
		result.Blocks = append(result.Blocks, br)
	}

	elapsed := time.Since(start)
	spanHelper.SetLineCounts(result.Stats.Lines, result.Stats.Bubbles)
	spanHelper.SetDuration(elapsed.Milliseconds())
	spanHelper.SetSuccess()
	o.recorder.RecordPassCompletion(observability.StatusSuccess, elapsed.Seconds(), len(result.Stats.Speakers))

	debug("Render pass complete",
		logging.F("lines", result.Stats.Lines),
		logging.F("bubbles", result.Stats.Bubbles),
		logging.F("speakers", result.Stats.Speakers),
		logging.F("duration", elapsed))

	return result, nil
}

func runBlock(ctx context.Context, o *options, resolver *speakers.Resolver, block note.Block, result *Result, seen map[string]bool) []Item {
	_, span := o.tracer.StartBlockSpan(ctx, block.Index)
	defer span.End()

	lines := transcript.ParseLines(transcript.SplitLines(block.Nodes))
	items := make([]Item, 0, len(lines))

	for _, line := range lines {
		result.Stats.Lines++
		o.recorder.RecordLine(string(line.Kind))

		switch line.Kind {
		case transcript.LineBubble:
			result.Stats.Bubbles++
			view := resolveBubble(resolver, line.Bubble)
			if key := line.Bubble.Speaker.NormalizedName; !seen[key] {
				seen[key] = true
				result.Stats.Speakers = append(result.Stats.Speakers, view.Name)
			}
			items = append(items, Item{Kind: ItemBubble, Bubble: view})
		case transcript.LineDateSeparator:
			result.Stats.DateSeparators++
			items = append(items, Item{Kind: ItemDateSeparator, DateSeparator: line.DateSeparator})
		default:
			result.Stats.RegularText++
			items = append(items, Item{Kind: ItemRegularText, Regular: line.Regular.Nodes})
		}
	}

	observability.NewSpanHelper(span).SetLineCounts(len(lines), countBubbles(items))
	return items
}

// resolveBubble applies speaker styling.
func resolveBubble(resolver *speakers.Resolver, b *transcript.Bubble) *BubbleView {
	name := b.Speaker.Name
	return &BubbleView{
		Name:      name,
		Side:      resolver.Side(name),
		Owner:     resolver.IsOwner(name),
		Color:     resolver.Color(name),
		Icon:      resolver.Icon(name),
		Timestamp: b.Timestamp,
		Message:   b.Message,
	}
}

func hasTranscriptItems(items []Item) bool {
	for _, item := range items {
		if item.Kind == ItemBubble || item.Kind == ItemDateSeparator {
			return true
		}
	}
	return false
}

func countBubbles(items []Item) int {
	n := 0
	for _, item := range items {
		if item.Kind == ItemBubble {
			n++
		}
	}
	return n
}
