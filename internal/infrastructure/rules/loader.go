// Package rules loads reconciliation rule sets from YAML.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iho/vendorpay/internal/domain"
)

// Load reads the rule set at path. An empty path yields domain.DefaultRuleSet.
func Load(path string) (domain.RuleSet, error) {
	if path == "" {
		return domain.DefaultRuleSet(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("read rules file: %w", err)
	}
	rs, err := Parse(raw)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes and validates a YAML rule set. Unknown keys are rejected.
func Parse(raw []byte) (domain.RuleSet, error) {
	var rs domain.RuleSet

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&rs); err != nil && !errors.Is(err, io.EOF) {
		return domain.RuleSet{}, fmt.Errorf("%w: %v", domain.ErrInvalidRule, err)
	}

	if len(rs.Bank) == 0 && len(rs.OnChain) == 0 {
		return domain.RuleSet{}, fmt.Errorf("%w: rule set is empty", domain.ErrInvalidRule)
	}
	if err := rs.Validate(); err != nil {
		return domain.RuleSet{}, err
	}
	return rs, nil
}
