package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultModel           = "gemini-2.5-pro"
	defaultTemperature     = 0.2
	defaultTopP            = 0.95
	defaultTopK            = 40
	defaultMaxOutputTokens = 8192
	defaultMaxRetries      = 3
)

// ModelConfig holds the sampling and safety parameters applied to every
// request. It is copied into the Generator and never mutated afterwards.
type ModelConfig struct {
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
	// SafetyThreshold is one of block_none, block_only_high,
	// block_medium_and_above or block_low_and_above.
	SafetyThreshold string
	MaxRetries      int
}

// DefaultModelConfig returns conservative sampling for JSON extraction.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:           defaultModel,
		Temperature:     defaultTemperature,
		TopP:            defaultTopP,
		TopK:            defaultTopK,
		MaxOutputTokens: defaultMaxOutputTokens,
		SafetyThreshold: "block_only_high",
		MaxRetries:      defaultMaxRetries,
	}
}

func (c ModelConfig) normalized() (ModelConfig, error) {
	def := DefaultModelConfig()

	if c.Model = strings.TrimSpace(c.Model); c.Model == "" {
		c.Model = def.Model
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return c, fmt.Errorf("temperature %.2f is out of range [0, 2]", c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		c.TopP = def.TopP
	}
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = def.MaxOutputTokens
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.SafetyThreshold = strings.ToLower(strings.TrimSpace(c.SafetyThreshold)); c.SafetyThreshold == "" {
		c.SafetyThreshold = def.SafetyThreshold
	}
	if _, ok := thresholds[c.SafetyThreshold]; !ok {
		return c, fmt.Errorf("unknown safety threshold %q", c.SafetyThreshold)
	}

	return c, nil
}

var thresholds = map[string]genai.HarmBlockThreshold{
	"block_none":             genai.HarmBlockThresholdBlockNone,
	"block_only_high":        genai.HarmBlockThresholdBlockOnlyHigh,
	"block_medium_and_above": genai.HarmBlockThresholdBlockMediumAndAbove,
	"block_low_and_above":    genai.HarmBlockThresholdBlockLowAndAbove,
}

var safetyCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// contentConfig builds a fresh request config so callers never share one.
func (c ModelConfig) contentConfig() *genai.GenerateContentConfig {
	threshold := thresholds[c.SafetyThreshold]

	safety := make([]*genai.SafetySetting, 0, len(safetyCategories))
	for _, category := range safetyCategories {
		safety = append(safety, &genai.SafetySetting{Category: category, Threshold: threshold})
	}

	return &genai.GenerateContentConfig{
		Temperature:     ptr(c.Temperature),
		TopP:            ptr(c.TopP),
		TopK:            ptr(c.TopK),
		MaxOutputTokens: c.MaxOutputTokens,
		SafetySettings:  safety,
	}
}

func ptr[T any](v T) *T {
	return &v
}
