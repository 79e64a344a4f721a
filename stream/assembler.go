// Package stream implements the incremental assembler that reconstructs a
// structured result from an unordered sequence of partial fragments tagged
// with dotted/bracketed field paths. The assembler never sees a complete
// document: it buffers per-path fragments as they arrive and rebuilds the
// nested object (or the plain root text) on demand.
package stream

import (
	"fmt"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/opper-ai/opper-agent-go/internal/util"
	"github.com/opper-ai/opper-agent-go/logging"
)

// Chunk is one stream fragment. An empty Path addresses the unpathed root
// text; otherwise Path is a dotted/bracketed field address like "a.b[2].c".
type Chunk struct {
	Delta any
	Path  string
}

// FeedResult reports the effect of one accepted fragment: the path it was
// appended to, the text accumulated at that path so far, and an incremental
// JSON snapshot of the whole document.
type FeedResult struct {
	Path     string
	Text     string
	Snapshot string
}

// Kind tags the shape of a finalized result.
type Kind int

const (
	// KindEmpty means no fragments were ever fed.
	KindEmpty Kind = iota
	// KindText means only unpathed root fragments arrived.
	KindText
	// KindStructured means pathed fragments arrived and a nested value was
	// reconstructed.
	KindStructured
)

// Result is the finalized output of an Assembler.
type Result struct {
	Kind  Kind
	Text  string
	Value any
}

// Assembler accumulates fragments per field path. It keeps two parallel
// buffers for every path: the concatenated display text and the ordered raw
// fragment list, so a single non-string fragment can keep its native type
// while multi-fragment fields are concatenated and coerced at finalize time.
//
// An Assembler is not safe for concurrent use; each streamed call owns one.
type Assembler struct {
	display  map[string]*strings.Builder
	values   map[string][]any
	order    []string
	snapshot string
	schema   map[string]any
	logger   logging.Logger
}

// Options configures an Assembler.
type Options struct {
	// Schema, when set, is validated against the reconstructed value at
	// finalize time. Validation failure is logged and the unvalidated
	// reconstruction is returned; a malformed stream never fails finalize.
	Schema map[string]any
	Logger logging.Logger
}

// New creates an empty Assembler.
func New(optFns ...func(o *Options)) *Assembler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Assembler{
		display:  make(map[string]*strings.Builder),
		values:   make(map[string][]any),
		snapshot: "{}",
		schema:   opts.Schema,
		logger:   opts.Logger,
	}
}

// Feed appends one fragment. It returns nil and mutates nothing when the
// fragment is absent or the empty string, marking an explicit no-op so
// callers can tell "no new data" apart from an accepted fragment.
func (a *Assembler) Feed(c Chunk) *FeedResult {
	if c.Delta == nil {
		return nil
	}
	if s, ok := c.Delta.(string); ok && s == "" {
		return nil
	}

	buf, seen := a.display[c.Path]
	if !seen {
		buf = &strings.Builder{}
		a.display[c.Path] = buf
		a.order = append(a.order, c.Path)
	}
	a.values[c.Path] = append(a.values[c.Path], c.Delta)
	buf.WriteString(stringify(c.Delta))

	a.updateSnapshot(c.Path)

	return &FeedResult{
		Path:     c.Path,
		Text:     buf.String(),
		Snapshot: a.snapshot,
	}
}

// updateSnapshot maintains the incremental JSON view handed back from Feed.
// For the root path the snapshot is just the accumulated text; for pathed
// fragments the accumulated text (or a lone native-typed fragment) is set
// into a JSON document at the fragment's address.
func (a *Assembler) updateSnapshot(path string) {
	if path == "" {
		a.snapshot = a.display[""].String()
		return
	}
	if a.snapshot == "" || a.snapshot[0] != '{' {
		a.snapshot = "{}"
	}
	updated, err := sjson.Set(a.snapshot, sjsonPath(splitPath(path)), a.currentValue(path))
	if err != nil {
		a.logger.Warn("stream snapshot update failed", "path", path, "error", err.Error())
		return
	}
	a.snapshot = updated
}

// currentValue is the live value for a path: a lone non-string fragment
// verbatim, otherwise the accumulated text (uncoerced, since it may still be
// mid-token while the stream is running).
func (a *Assembler) currentValue(path string) any {
	frags := a.values[path]
	if len(frags) == 1 {
		if _, isText := frags[0].(string); !isText {
			return frags[0]
		}
	}
	return a.display[path].String()
}

// Finalize reconstructs the result from everything fed so far. It is
// idempotent: with no Feed calls in between, repeated calls return
// structurally equal results.
func (a *Assembler) Finalize() Result {
	var pathed []string
	for _, path := range a.order {
		if path != "" {
			pathed = append(pathed, path)
		}
	}

	if len(pathed) == 0 {
		if buf, ok := a.display[""]; ok {
			return Result{Kind: KindText, Text: buf.String()}
		}
		return Result{Kind: KindEmpty}
	}

	root := make(map[string]any)
	for _, path := range pathed {
		place(root, splitPath(path), a.resolve(path))
	}
	value := normalize(root)

	if a.schema != nil {
		if obj, ok := value.(map[string]any); ok {
			if err := util.ValidateParameters(obj, a.schema); err != nil {
				a.logger.Warn("stream result failed schema validation; returning unvalidated reconstruction",
					"error", err.Error())
			}
		}
	}

	return Result{Kind: KindStructured, Value: value}
}

// resolve produces the final value for one path: exactly one non-string
// fragment keeps its native type, anything else is the concatenated text run
// through primitive coercion.
func (a *Assembler) resolve(path string) any {
	frags := a.values[path]
	if len(frags) == 1 {
		if _, isText := frags[0].(string); !isText {
			return frags[0]
		}
	}
	return coerce(a.display[path].String())
}

// place walks segments into root, creating intermediate objects lazily. An
// intermediate that already holds a non-object value is replaced rather than
// treated as an error.
func place(root map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}
	node := root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// sjsonPath joins segments into an sjson path, escaping characters that are
// special in gjson/sjson path syntax (possible when a malformed bracket
// token is kept as a literal key).
func sjsonPath(segments []string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
		escaped[i] = r.Replace(seg)
	}
	return strings.Join(escaped, ".")
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
