package monitoring

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelRate is the USD price of a single token.
type ModelRate struct {
	Prompt     float64 `yaml:"prompt"`
	Completion float64 `yaml:"completion"`
}

// Pricing maps models and fixed-cost services to prices.
type Pricing struct {
	DefaultModel string               `yaml:"default_model"`
	Models       map[string]ModelRate `yaml:"models"`
	// Operations holds per-call costs keyed by service tag.
	Operations map[string]float64 `yaml:"operations"`
}

// DefaultPricing mirrors the published gpt-4o-mini list price and flat
// per-operation storage and media costs.
func DefaultPricing() Pricing {
	return Pricing{
		DefaultModel: "gpt-4o-mini",
		Models: map[string]ModelRate{
			"gpt-4o-mini": {Prompt: 0.00000015, Completion: 0.0000006},
		},
		Operations: map[string]float64{
			"store": 0.00001,
			"media": 0.001,
		},
	}
}

// LoadPricing reads a YAML pricing table and overlays it on DefaultPricing.
// An empty path returns the defaults.
func LoadPricing(path string) (Pricing, error) {
	pricing := DefaultPricing()
	if strings.TrimSpace(path) == "" {
		return pricing, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pricing{}, fmt.Errorf("read pricing file: %w", err)
	}
	var file Pricing
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Pricing{}, fmt.Errorf("parse pricing file: %w", err)
	}
	if file.DefaultModel != "" {
		pricing.DefaultModel = file.DefaultModel
	}
	for model, rate := range file.Models {
		if rate.Prompt < 0 || rate.Completion < 0 {
			return Pricing{}, fmt.Errorf("pricing for %s must not be negative", model)
		}
		pricing.Models[model] = rate
	}
	for service, cost := range file.Operations {
		if cost < 0 {
			return Pricing{}, fmt.Errorf("operation cost for %s must not be negative", service)
		}
		pricing.Operations[service] = cost
	}
	return pricing, nil
}

// ModelCost prices a model call. Unknown models use the default model's rate.
func (p Pricing) ModelCost(model string, promptTokens, completionTokens int64) float64 {
	rate, ok := p.Models[model]
	if !ok {
		rate = p.Models[p.DefaultModel]
	}
	return float64(promptTokens)*rate.Prompt + float64(completionTokens)*rate.Completion
}

// OperationCost returns the flat cost for one call to service.
func (p Pricing) OperationCost(service string) float64 {
	return p.Operations[service]
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(text string) int64 {
	return int64((len(text) + 3) / 4)
}
