package downloader

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Model describes a downloadable GGUF checkpoint.
type Model struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Params      float64 `json:"params_billions" yaml:"params_billions"`
	Size        int64   `json:"size_bytes" yaml:"size_bytes"`
	Filename    string  `json:"filename" yaml:"filename"`
	URL         string  `json:"url" yaml:"url"`
	SHA256      string  `json:"sha256,omitempty" yaml:"sha256,omitempty"`
}

// DefaultModelID is used when no model is configured.
const DefaultModelID = "bitnet-b1.58-2b-4t"

var catalogue = []Model{
	{
		ID:          "bitnet-b1.58-2b-4t",
		Name:        "BitNet b1.58 2B-4T",
		Description: "Official Microsoft BitNet model, 2.4B parameters trained on 4T tokens",
		Params:      2.4,
		Size:        1_277_853_696,
		Filename:    "ggml-model-i2_s.gguf",
		URL:         "https://huggingface.co/microsoft/bitnet-b1.58-2B-4T-gguf/resolve/main/ggml-model-i2_s.gguf",
		SHA256:      "4221b252fdd5fd25e15847adfeb5ee88886506ba50b8a34548374492884c2162",
	},
	{
		ID:          "bitnet-b1.58-large",
		Name:        "BitNet b1.58 Large",
		Description: "Small BitNet model, 0.7B parameters",
		Params:      0.7,
		Size:        400_000_000,
		Filename:    "bitnet-b1.58-large-i2_s.gguf",
		URL:         "https://huggingface.co/1bitLLM/bitnet_b1_58-large/resolve/main/ggml-model-i2_s.gguf",
	},
	{
		ID:          "bitnet-b1.58-3b",
		Name:        "BitNet b1.58 3B",
		Description: "BitNet model with 3.3B parameters",
		Params:      3.3,
		Size:        1_800_000_000,
		Filename:    "bitnet-b1.58-3b-i2_s.gguf",
		URL:         "https://huggingface.co/1bitLLM/bitnet_b1_58-3B/resolve/main/ggml-model-i2_s.gguf",
	},
	{
		ID:          "llama3-8b-1.58",
		Name:        "Llama3 8B 1.58-bit",
		Description: "Llama3 8B quantized to 1.58 bits, trained on 100B tokens",
		Params:      8.0,
		Size:        4_500_000_000,
		Filename:    "llama3-8b-1.58-i2_s.gguf",
		URL:         "https://huggingface.co/HF1BitLLM/Llama3-8B-1.58-100B-tokens/resolve/main/ggml-model-i2_s.gguf",
	},
}

var aliases = map[string]string{
	"2b":            "bitnet-b1.58-2b-4t",
	"2b-4t":         "bitnet-b1.58-2b-4t",
	"default":       "bitnet-b1.58-2b-4t",
	"b1.58-2b-4t":   "bitnet-b1.58-2b-4t",
	"large":         "bitnet-b1.58-large",
	"0.7b":          "bitnet-b1.58-large",
	"3b":            "bitnet-b1.58-3b",
	"8b":            "llama3-8b-1.58",
	"llama3-8b":     "llama3-8b-1.58",
	"llama3-8b-158": "llama3-8b-1.58",
}

// Models returns the catalogue in display order.
func Models() []Model {
	return append([]Model(nil), catalogue...)
}

// Lookup resolves an id or alias, case-insensitively.
func Lookup(name string) (Model, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := aliases[key]; ok {
		key = id
	}
	for _, m := range catalogue {
		if m.ID == key {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("unknown model %q (available: %s)", name, strings.Join(ids(), ", "))
}

// FromPath guesses which catalogue entry a local GGUF file belongs to.
func FromPath(path string) (Model, bool) {
	name := strings.ToLower(filepath.Base(path))
	dir := strings.ToLower(filepath.Base(filepath.Dir(path)))
	for _, m := range catalogue {
		if dir == m.ID || (name == strings.ToLower(m.Filename) && m.Filename != "ggml-model-i2_s.gguf") {
			return m, true
		}
	}
	switch {
	case strings.Contains(name, "2b"):
		return catalogue[0], true
	case strings.Contains(name, "large"):
		return catalogue[1], true
	case strings.Contains(name, "3b"):
		return catalogue[2], true
	case strings.Contains(name, "8b"), strings.Contains(name, "llama3"):
		return catalogue[3], true
	}
	return Model{}, false
}

// HumanSize renders a byte count the way the model listing shows it.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func ids() []string {
	out := make([]string, len(catalogue))
	for i, m := range catalogue {
		out[i] = m.ID
	}
	return out
}
