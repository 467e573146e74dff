package signals

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/danielpatrickdp/anima-core/internal/emotion"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/go-playground/validator/v10"
)

// polarity of each emotional keyword, used for lexical valence.
var polarity = map[string]float64{
	"joy":     1,
	"love":    1,
	"curious": 0.5,
	"calm":    0.5,
	"fear":    -1,
	"anger":   -1,
}

// #region producer

// Producer turns interaction events into pipeline inputs.
type Producer struct {
	config   ProducerConfig
	validate *validator.Validate
}

// NewProducer creates a Producer.
func NewProducer(config ProducerConfig) *Producer {
	def := DefaultProducerConfig()
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = def.MaxTextLength
	}
	return &Producer{config: config, validate: validator.New()}
}

// #endregion producer

// #region produce

// Produce validates ev and derives its strength, keywords and valence.
func (p *Producer) Produce(ev Event) (Interaction, error) {
	if err := p.Validate(ev); err != nil {
		return Interaction{}, err
	}
	tokens := tokenize(ev.Text)
	keywords := p.keywords(tokens, ev.Keywords)
	return Interaction{
		Strength: p.strength(ev, tokens),
		Keywords: keywords,
		Valence:  valence(keywords),
	}, nil
}

// Validate checks ev's struct tags and text length.
func (p *Producer) Validate(ev Event) error {
	if err := p.validate.Struct(ev); err != nil {
		return errtrack.E(errtrack.ErrValidation, "validate event", formatValidationError(err))
	}
	if len(ev.Text) > p.config.MaxTextLength {
		return errtrack.Validationf("validate event", "text is %d bytes, limit %d", len(ev.Text), p.config.MaxTextLength)
	}
	return nil
}

// #endregion produce

// #region strength

// strength uses the explicit value when given, else lexical diversity, then
// damps it by risk.
func (p *Producer) strength(ev Event, tokens []string) float64 {
	base := ev.Strength
	if base == 0 {
		base = p.config.DefaultStrength
		if len(tokens) > 0 {
			base = diversity(tokens)
		}
	}
	return clamp(base * (1 - p.config.RiskDamping*clamp(ev.Risk)))
}

// diversity is unique tokens over total tokens.
func diversity(tokens []string) float64 {
	unique := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		unique[t] = struct{}{}
	}
	return float64(len(unique)) / float64(len(tokens))
}

// #endregion strength

// #region keywords

// keywords collects table keywords from explicit hints and text, in order of
// first appearance. A token matches a keyword it starts with ("joyful" is joy).
func (p *Producer) keywords(tokens, hints []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(word string) {
		for k := range emotion.Keywords {
			if strings.HasPrefix(word, k) && !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	for _, h := range hints {
		add(strings.ToLower(h))
	}
	for _, t := range tokens {
		add(t)
	}
	return out
}

// valence averages keyword polarity.
func valence(keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	var sum float64
	for _, k := range keywords {
		sum += polarity[k]
	}
	return sum / float64(len(keywords))
}

// #endregion keywords

// #region helpers

// tokenize splits text into lowercase tokens with surrounding punctuation removed.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimFunc(f, unicode.IsPunct); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be in [0, 1]", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
