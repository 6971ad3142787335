package inference

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/LiboWorks/bitrag/internal/llama"
)

// SamplerConfig holds the strategy parameters of a sampler chain.
type SamplerConfig struct {
	Temperature   float32 `json:"temperature" yaml:"temperature"`
	TopK          int     `json:"top_k" yaml:"top_k"`
	TopP          float32 `json:"top_p" yaml:"top_p"`
	MinP          float32 `json:"min_p" yaml:"min_p"`
	RepeatPenalty float32 `json:"repeat_penalty" yaml:"repeat_penalty"`
	RepeatLastN   int     `json:"repeat_last_n" yaml:"repeat_last_n"`
	Seed          uint64  `json:"seed" yaml:"seed"` // 0 = random
}

// DefaultSamplerConfig returns the balanced preset.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Temperature:   0.7,
		TopK:          40,
		TopP:          0.95,
		MinP:          0.05,
		RepeatPenalty: 1.1,
		RepeatLastN:   64,
	}
}

// GreedySamplerConfig always picks the highest-scoring token.
func GreedySamplerConfig() SamplerConfig {
	return SamplerConfig{
		Temperature:   0,
		TopK:          1,
		TopP:          1,
		MinP:          0,
		RepeatPenalty: 1,
		RepeatLastN:   0,
	}
}

// CreativeSamplerConfig trades determinism for variety.
func CreativeSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Temperature:   0.9,
		TopK:          50,
		TopP:          0.95,
		MinP:          0.02,
		RepeatPenalty: 1.15,
		RepeatLastN:   128,
	}
}

// SamplerPreset looks up a named preset.
func SamplerPreset(name string) (SamplerConfig, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default", "balanced":
		return DefaultSamplerConfig(), true
	case "greedy", "precise":
		return GreedySamplerConfig(), true
	case "creative":
		return CreativeSamplerConfig(), true
	default:
		return SamplerConfig{}, false
	}
}

// Validate rejects parameters no stage can interpret.
func (c SamplerConfig) Validate() error {
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("%w: top_p must be in [0,1], got %v", ErrSampling, c.TopP)
	}
	if c.MinP < 0 || c.MinP > 1 {
		return fmt.Errorf("%w: min_p must be in [0,1], got %v", ErrSampling, c.MinP)
	}
	if c.RepeatPenalty < 0 {
		return fmt.Errorf("%w: repeat_penalty must not be negative, got %v", ErrSampling, c.RepeatPenalty)
	}
	if c.RepeatLastN < 0 {
		return fmt.Errorf("%w: repeat_last_n must not be negative, got %d", ErrSampling, c.RepeatLastN)
	}
	return nil
}

// Sampler turns next-token scores into one token id. It keeps the recent
// token history used by the repetition penalty, so a sampler belongs to a
// single generation request.
type Sampler struct {
	cfg     SamplerConfig
	nVocab  int
	stages  []stage
	history []llama.Token
	rng     *rand.Rand
	cands   candidates
}

// BuildSampler assembles the chain in canonical order: repetition penalty,
// top-k, top-p, min-p, temperature, then the final draw. Stages whose
// parameter is neutral are left out; a non-positive temperature makes the
// final stage greedy.
func BuildSampler(cfg SamplerConfig, nVocab int) (*Sampler, error) {
	if nVocab <= 0 {
		return nil, fmt.Errorf("%w: vocabulary size must be positive, got %d", ErrSampling, nVocab)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sampler{cfg: cfg, nVocab: nVocab, rng: newRand(cfg.Seed)}
	if cfg.RepeatPenalty > 0 && cfg.RepeatPenalty != 1 && cfg.RepeatLastN > 0 {
		s.stages = append(s.stages, penaltyStage{penalty: cfg.RepeatPenalty})
	}
	if cfg.TopK > 0 && cfg.TopK < nVocab {
		s.stages = append(s.stages, topKStage{k: cfg.TopK})
	}
	if cfg.TopP > 0 && cfg.TopP < 1 {
		s.stages = append(s.stages, topPStage{p: cfg.TopP})
	}
	if cfg.MinP > 0 {
		s.stages = append(s.stages, minPStage{p: cfg.MinP})
	}
	if cfg.Temperature > 0 {
		s.stages = append(s.stages, tempStage{t: cfg.Temperature})
		s.stages = append(s.stages, distStage{})
	} else {
		s.stages = append(s.stages, greedyStage{})
	}
	return s, nil
}

// Greedy returns a one-stage chain that always picks the argmax.
func Greedy(nVocab int) *Sampler {
	return &Sampler{
		cfg:    GreedySamplerConfig(),
		nVocab: nVocab,
		stages: []stage{greedyStage{}},
		rng:    newRand(1),
	}
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Config returns the configuration the chain was built from.
func (s *Sampler) Config() SamplerConfig { return s.cfg }

// Stages lists stage names in application order.
func (s *Sampler) Stages() []string {
	names := make([]string, len(s.stages))
	for i, st := range s.stages {
		names[i] = st.name()
	}
	return names
}

// Sample picks the next token from the output at batchIndex of the last
// decode on ctx (-1 for the last output).
func (s *Sampler) Sample(ctx *Context, batchIndex int) (llama.Token, error) {
	logits, err := ctx.Logits(batchIndex)
	if err != nil {
		return 0, err
	}
	return s.SampleLogits(logits)
}

// SampleLogits runs the chain over raw scores.
func (s *Sampler) SampleLogits(logits []float32) (llama.Token, error) {
	if len(logits) == 0 {
		return 0, fmt.Errorf("%w: empty logits", ErrSampling)
	}
	n := len(logits)
	if n > s.nVocab {
		n = s.nVocab
	}
	s.cands.reset(logits[:n])
	for _, st := range s.stages {
		st.apply(&s.cands, s)
		if len(s.cands.items) == 0 {
			return 0, fmt.Errorf("%w: stage %s removed every candidate", ErrSampling, st.name())
		}
	}
	return s.cands.items[s.cands.chosen].id, nil
}

// Accept records tok in the repetition history. It must be called after
// every Sample.
func (s *Sampler) Accept(tok llama.Token) {
	window := s.cfg.RepeatLastN
	if window <= 0 {
		return
	}
	if len(s.history) < window {
		s.history = append(s.history, tok)
		return
	}
	copy(s.history, s.history[1:])
	s.history[len(s.history)-1] = tok
}

// History returns a copy of the tokens held for the repetition penalty.
func (s *Sampler) History() []llama.Token {
	return append([]llama.Token(nil), s.history...)
}

// Reset drops the history.
func (s *Sampler) Reset() { s.history = s.history[:0] }
