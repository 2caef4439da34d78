// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: MIT

package predicate

import (
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/aws/amazon-cloudwatch-kinesis-analytics-monitor/internal/metric"
)

// MultiDimensionPredicate accepts a listed metric when every configured
// dimension it carries has a value matching one of that dimension's patterns.
type MultiDimensionPredicate struct {
	patterns map[string][]*regexp.Regexp
}

// NewMultiDimensionPredicate compiles the value patterns of each dimension.
// Patterns are anchored. A dimension without patterns accepts any value.
func NewMultiDimensionPredicate(dimensions []metric.Dimension) (*MultiDimensionPredicate, error) {
	p := &MultiDimensionPredicate{patterns: make(map[string][]*regexp.Regexp, len(dimensions))}
	for _, dimension := range dimensions {
		var compiled []*regexp.Regexp
		for _, value := range dimension.Values {
			re, err := regexp.Compile("^(?:" + value + ")$")
			if err != nil {
				return nil, fmt.Errorf("dimension %s has invalid value pattern %q: %w", dimension.Name, value, err)
			}
			compiled = append(compiled, re)
		}
		p.patterns[dimension.Name] = append(p.patterns[dimension.Name], compiled...)
	}
	return p, nil
}

func (p *MultiDimensionPredicate) Apply(m types.Metric) bool {
	for _, d := range m.Dimensions {
		if d.Name == nil {
			continue
		}
		patterns, ok := p.patterns[*d.Name]
		if !ok || len(patterns) == 0 {
			continue
		}
		value := ""
		if d.Value != nil {
			value = *d.Value
		}
		if !matchesAny(patterns, value) {
			return false
		}
	}
	return true
}

func matchesAny(patterns []*regexp.Regexp, value string) bool {
	for _, re := range patterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
