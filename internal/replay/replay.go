// Package replay runs recorded decision requests through a client offline.
//
// Input and output are JSON lines. Each request carries exactly one of flag_key
// (decide), experiment_key (activate) or event_key (track). A line that cannot be
// decoded or served produces a result with an error and the run continues.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rafaeljc/bifrost/internal/client"
	"github.com/rafaeljc/bifrost/internal/validation"
)

const maxLineSize = 1 << 20

// Operations reported in results.
const (
	OpDecide   = "decide"
	OpActivate = "activate"
	OpTrack    = "track"
)

// ErrAmbiguousRequest is reported for a line naming zero or several operations.
var ErrAmbiguousRequest = errors.New("request must set exactly one of flag_key, experiment_key or event_key")

// Client is the part of *client.Client a replay needs.
type Client interface {
	Decide(ctx context.Context, user client.UserContext, flagKey string, opts ...client.DecideOption) client.DecideResult
	Activate(ctx context.Context, experimentKey, userID string, attrs map[string]any) (string, error)
	Track(ctx context.Context, eventKey, userID string, attrs, tags map[string]any) error
}

// Request is one input line.
type Request struct {
	UserID        string         `json:"user_id"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	FlagKey       string         `json:"flag_key,omitempty"`
	ExperimentKey string         `json:"experiment_key,omitempty"`
	EventKey      string         `json:"event_key,omitempty"`
	Tags          map[string]any `json:"tags,omitempty"`
}

// Result is one output line.
type Result struct {
	Line         int            `json:"line"`
	Op           string         `json:"op,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Key          string         `json:"key,omitempty"`
	VariationKey string         `json:"variation_key,omitempty"`
	Enabled      *bool          `json:"enabled,omitempty"`
	RuleKey      string         `json:"rule_key,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	Reasons      []string       `json:"reasons,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Summary counts the lines of a run.
type Summary struct {
	Lines  int
	Failed int
}

// Replayer feeds requests to a Client.
type Replayer struct {
	client        Client
	logger        *slog.Logger
	decideOptions []client.DecideOption
}

// Option customizes a Replayer.
type Option func(*Replayer)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Replayer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDecideOptions applies opts to every decide request.
func WithDecideOptions(opts ...client.DecideOption) Option {
	return func(r *Replayer) { r.decideOptions = append(r.decideOptions, opts...) }
}

// New creates a Replayer. It panics if c is nil.
func New(c Client, opts ...Option) *Replayer {
	validation.AssertPresent(c, "replay client")

	r := &Replayer{client: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads requests from in until EOF or ctx is done and writes one result per
// non blank line to out. It returns early only on read, write or context errors.
func (r *Replayer) Run(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	var summary Summary

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(out)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		result := r.serve(ctx, raw)
		result.Line = line
		summary.Lines++
		if result.Error != "" {
			summary.Failed++
			r.logger.Warn("replay request failed",
				slog.Int("line", line),
				slog.String("error", result.Error),
			)
		}

		if err := enc.Encode(result); err != nil {
			return summary, fmt.Errorf("failed to write result of line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("failed to read requests: %w", err)
	}

	r.logger.Info("replay finished",
		slog.Int("lines", summary.Lines),
		slog.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (r *Replayer) serve(ctx context.Context, raw []byte) Result {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Result{Error: fmt.Sprintf("invalid request: %v", err)}
	}

	result := Result{UserID: req.UserID}
	switch op, err := req.operation(); {
	case err != nil:
		result.Error = err.Error()

	case op == OpDecide:
		result.Op, result.Key = op, req.FlagKey
		d := r.client.Decide(ctx, client.UserContext{ID: req.UserID, Attributes: req.Attributes}, req.FlagKey, r.decideOptions...)
		result.VariationKey = d.VariationKey
		result.Enabled = &d.Enabled
		result.RuleKey = d.RuleKey
		result.Variables = d.Variables
		result.Reasons = d.Reasons

	case op == OpActivate:
		result.Op, result.Key = op, req.ExperimentKey
		variation, err := r.client.Activate(ctx, req.ExperimentKey, req.UserID, req.Attributes)
		if err != nil {
			result.Error = err.Error()
			break
		}
		result.VariationKey = variation

	case op == OpTrack:
		result.Op, result.Key = op, req.EventKey
		if err := r.client.Track(ctx, req.EventKey, req.UserID, req.Attributes, req.Tags); err != nil {
			result.Error = err.Error()
		}
	}
	return result
}

func (req *Request) operation() (string, error) {
	var ops []string
	if req.FlagKey != "" {
		ops = append(ops, OpDecide)
	}
	if req.ExperimentKey != "" {
		ops = append(ops, OpActivate)
	}
	if req.EventKey != "" {
		ops = append(ops, OpTrack)
	}
	if len(ops) != 1 {
		return "", ErrAmbiguousRequest
	}
	return ops[0], nil
}
