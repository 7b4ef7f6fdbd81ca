// Copyright 2025 BPI Labs
//
// ConfigEvaluator validates a typed parameter vector before a caller
// enacts it — e.g. a governance-approved change to economy
// parameters — without ever becoming a general configuration
// language: YAMLEvaluator only ever decodes a flat map of named
// numeric bounds, never arbitrary service configuration.

package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParamBound is the inclusive range a named parameter must fall
// within to be accepted.
type ParamBound struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// ConfigEvaluator validates a raw parameter vector document and
// returns the decoded values, or an error naming every out-of-bounds
// or unknown key.
type ConfigEvaluator interface {
	Evaluate(document []byte) (map[string]float64, error)
}

// YAMLEvaluator decodes a YAML document of the form
//
//	fee_rate: 0.01
//	beta_burn: 0.6
//
// against a fixed set of declared bounds, rejecting unknown keys and
// any value outside its declared range.
type YAMLEvaluator struct {
	bounds map[string]ParamBound
}

// NewYAMLEvaluator constructs an evaluator over the given bounds.
func NewYAMLEvaluator(bounds map[string]ParamBound) *YAMLEvaluator {
	return &YAMLEvaluator{bounds: bounds}
}

// Evaluate decodes document and validates every key against its
// declared bound.
func (e *YAMLEvaluator) Evaluate(document []byte) (map[string]float64, error) {
	var raw map[string]float64
	if err := yaml.Unmarshal(document, &raw); err != nil {
		return nil, fmt.Errorf("config: decode parameter vector: %w", err)
	}

	for key, value := range raw {
		bound, ok := e.bounds[key]
		if !ok {
			return nil, fmt.Errorf("config: unknown parameter %q", key)
		}
		if value < bound.Min || value > bound.Max {
			return nil, fmt.Errorf("config: parameter %q = %v outside [%v, %v]", key, value, bound.Min, bound.Max)
		}
	}

	return raw, nil
}
