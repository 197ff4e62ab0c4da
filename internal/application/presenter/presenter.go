// Package presenter turns engine results and message keys into chat text
// using a YAML message catalog.
package presenter

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/fleetbot/internal/application/dispatcher"
	"github.com/garyjia/fleetbot/internal/application/workflow"
	"github.com/garyjia/fleetbot/internal/domain/validator"
)

//go:embed messages.yaml
var defaultCatalog []byte

// Key prefixes of the catalog
const (
	prefixReason    = "reason."
	prefixCompleted = "completed."
	keyCancelled    = "outcome.cancelled"
	keyAborted      = "outcome.aborted"
)

// Presenter renders messages from a flattened catalog
type Presenter struct {
	messages map[string]string
	logger   *zap.Logger
}

// Option configures the presenter
type Option func(*Presenter)

// WithLogger sets the presenter logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Presenter) {
		p.logger = logger
	}
}

// WithOverrides layers a second YAML catalog over the embedded one
func WithOverrides(data []byte) Option {
	return func(p *Presenter) {
		extra, err := Parse(data)
		if err != nil {
			p.logger.Error("Failed to parse message overrides", zap.Error(err))
			return
		}
		for k, v := range extra {
			p.messages[k] = v
		}
	}
}

// New creates a presenter over the embedded catalog
func New(opts ...Option) (*Presenter, error) {
	messages, err := Parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load message catalog: %w", err)
	}

	p := &Presenter{messages: messages, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Parse flattens a YAML document of nested maps into dotted keys
func Parse(data []byte) (map[string]string, error) {
	var root map[string]interface{}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	if err := flatten("", root, out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]interface{}:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		case int, int64, float64, bool:
			out[key] = fmt.Sprint(val)
		default:
			return fmt.Errorf("message %q: unsupported value %T", key, v)
		}
	}
	return nil
}

// Has reports whether key is in the catalog
func (p *Presenter) Has(key string) bool {
	_, ok := p.messages[key]
	return ok
}

// Keys returns the catalog keys in order
func (p *Presenter) Keys() []string {
	keys := make([]string, 0, len(p.messages))
	for k := range p.messages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Text renders a message. Unknown keys render as the key itself.
func (p *Presenter) Text(key string, params map[string]string) string {
	msg, ok := p.messages[key]
	if !ok {
		p.logger.Warn("Missing message", zap.String("key", key))
		return key
	}
	return substitute(msg, params)
}

func substitute(msg string, params map[string]string) string {
	if len(params) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// Result renders one engine transition
func (p *Presenter) Result(res *workflow.Result) string {
	if res == nil {
		return p.Text(dispatcher.KeyInternalError, nil)
	}

	switch res.Outcome {
	case workflow.OutcomePrompted:
		return p.prompt(res)
	case workflow.OutcomeReprompt:
		return p.Text(prefixReason+res.Reason, res.Params) + "\n" + p.prompt(res)
	case workflow.OutcomeBusy, workflow.OutcomeRefused:
		return p.Text(prefixReason+res.Reason, res.Params)
	case workflow.OutcomeCancelled:
		return p.Text(keyCancelled, nil)
	case workflow.OutcomeAborted:
		if res.Reason != "" && p.Has(prefixReason+res.Reason) {
			return p.Text(prefixReason+res.Reason, res.Params)
		}
		return p.Text(keyAborted, nil)
	case workflow.OutcomeCompleted:
		return p.Text(prefixCompleted+res.FlowID.String(), res.Stats)
	case workflow.OutcomeDeferred:
		return p.Text(prefixReason+workflow.ReasonStoreUnavailable, nil)
	case workflow.OutcomeIdle:
		if res.Reason != "" {
			return p.Text(prefixReason+res.Reason, nil)
		}
		return p.Text(dispatcher.KeyUnrecognized, nil)
	default:
		p.logger.Warn("Unknown outcome", zap.String("outcome", res.Outcome.String()))
		return p.Text(dispatcher.KeyInternalError, nil)
	}
}

func (p *Presenter) prompt(res *workflow.Result) string {
	text := p.Text(res.Prompt, res.Params)
	if len(res.Options) == 0 {
		return text
	}
	return text + "\n" + FormatOptions(res.Options)
}

// FormatOptions renders options as numbered "N: label" lines
func FormatOptions(opts []validator.Option) string {
	lines := make([]string, len(opts))
	for i, opt := range opts {
		lines[i] = strconv.Itoa(i+1) + ": " + opt.Label
	}
	return strings.Join(lines, "\n")
}

var _ dispatcher.Renderer = (*Presenter)(nil)
