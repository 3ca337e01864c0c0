package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bucket names the special-case output a manager rule feeds.
type Bucket string

const (
	// BucketInstanceBreakdown sums alert events per "instance" tag.
	BucketInstanceBreakdown Bucket = "instance_breakdown"
	// BucketUndiscoveredWorkload lists workloads of incidents missing a configuration item.
	BucketUndiscoveredWorkload Bucket = "undiscovered_workload"
	// BucketLogPlatformWorkload lists workloads raised by log platforms without a configuration item.
	BucketLogPlatformWorkload Bucket = "log_platform_workload"
)

// Rule routes records from matching managers into a bucket.
type Rule struct {
	ID     string    `yaml:"id"`
	Label  string    `yaml:"label"`
	Bucket Bucket    `yaml:"bucket"`
	Match  RuleMatch `yaml:"match"`
}

// RuleMatch selects managers by exact name or case-sensitive substring. When
// both are set both must hold.
type RuleMatch struct {
	ManagerEquals   string `yaml:"manager_equals,omitempty"`
	ManagerContains string `yaml:"manager_contains,omitempty"`
}

// RuleSet is the declarative table of manager special cases.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules mirrors the special cases the digest has always reported.
func DefaultRules() RuleSet {
	return RuleSet{Rules: []Rule{
		{ID: "nagios", Label: "Nagios instances", Bucket: BucketInstanceBreakdown, Match: RuleMatch{ManagerEquals: "Nagios"}},
		{ID: "dynatrace", Label: "Undiscovered Dynatrace workloads", Bucket: BucketUndiscoveredWorkload, Match: RuleMatch{ManagerEquals: "Dynatrace"}},
		{ID: "splunk", Label: "Splunk workloads", Bucket: BucketLogPlatformWorkload, Match: RuleMatch{ManagerContains: "Splunk"}},
	}}
}

// LoadRules reads a rule table from path. An empty path or a missing file yields
// DefaultRules.
func LoadRules(path string, logger *slog.Logger) (RuleSet, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("rule table not found, using defaults", slog.String("path", path))
			return DefaultRules(), nil
		}
		return RuleSet{}, err
	}
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return RuleSet{}, fmt.Errorf("parse rules: %w", err)
	}
	if err := set.Validate(); err != nil {
		return RuleSet{}, err
	}
	return set, nil
}

// Validate rejects rules that could never match or that feed an unknown bucket.
func (s RuleSet) Validate() error {
	seen := make(map[string]struct{}, len(s.Rules))
	for i, rule := range s.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: id is required", i)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("rule %s: duplicate id", rule.ID)
		}
		seen[rule.ID] = struct{}{}
		switch rule.Bucket {
		case BucketInstanceBreakdown, BucketUndiscoveredWorkload, BucketLogPlatformWorkload:
		default:
			return fmt.Errorf("rule %s: unknown bucket %q", rule.ID, rule.Bucket)
		}
		if rule.Match.ManagerEquals == "" && rule.Match.ManagerContains == "" {
			return fmt.Errorf("rule %s: match needs manager_equals or manager_contains", rule.ID)
		}
	}
	return nil
}

// Matches reports whether the rule applies to manager.
func (r Rule) Matches(manager string) bool {
	if r.Match.ManagerEquals != "" && manager != r.Match.ManagerEquals {
		return false
	}
	if r.Match.ManagerContains != "" && !strings.Contains(manager, r.Match.ManagerContains) {
		return false
	}
	return r.Match.ManagerEquals != "" || r.Match.ManagerContains != ""
}

// For returns the rules feeding bucket, in table order.
func (s RuleSet) For(bucket Bucket) []Rule {
	out := make([]Rule, 0, len(s.Rules))
	for _, rule := range s.Rules {
		if rule.Bucket == bucket {
			out = append(out, rule)
		}
	}
	return out
}

func anyMatch(rules []Rule, manager string) bool {
	for _, rule := range rules {
		if rule.Matches(manager) {
			return true
		}
	}
	return false
}
