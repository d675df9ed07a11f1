package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentfabric/core/capability"
)

// versionPattern implements the grammar ^(==|>=|<=|>|<)?\s*<dotted-numeric>$.
var versionPattern = regexp.MustCompile(`^(==|>=|<=|>|<)?\s*([0-9]+(?:\.[0-9]+)*)$`)

// Requirement is a parsed version constraint, e.g. ">=2.1".
type Requirement struct {
	Op      string
	Version capability.ParsedVersion
}

// ParseRequirement parses a version requirement string. An omitted
// operator means "==".
func ParseRequirement(s string) (*Requirement, error) {
	m := versionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrVersionRequirement, s)
	}
	op := m[1]
	if op == "" {
		op = "=="
	}
	parsed, err := capability.ParseVersion(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVersionRequirement, err)
	}
	return &Requirement{Op: op, Version: parsed}, nil
}

// Satisfies reports whether candidateVersion satisfies the requirement.
// An unparsable candidate version is treated as compatible — fail-open
// for forward compatibility, per the version grammar's design note.
func (r *Requirement) Satisfies(candidateVersion string) bool {
	if r == nil {
		return true
	}
	candidate, err := capability.ParseVersion(candidateVersion)
	if err != nil {
		return true
	}
	cmp := candidate.Compare(r.Version)
	switch r.Op {
	case "==":
		return cmp == 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	default:
		return true
	}
}
