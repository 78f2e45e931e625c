package model

import "github.com/m-mizutani/goerr/v2"

var ErrEmptyPlan = goerr.New("tool plan is empty")

// PlanReason records how a ToolPlan was resolved
type PlanReason string

const (
	// PlanExplicit: the interpretation capability selected the tools from
	// the record's free-text instructions.
	PlanExplicit PlanReason = "explicit"
	// PlanDefaultFallback: instructions were absent or blank, so no
	// interpretation call was made and the default set applies.
	PlanDefaultFallback PlanReason = "default-fallback"
	// PlanGuardrailFallback: interpretation was attempted but its output
	// was rejected (unknown tool, empty, malformed, error, timeout).
	PlanGuardrailFallback PlanReason = "guardrail-fallback"
)

// ToolPlan is the ordered set of tools to execute for one record.
// A valid plan is never empty.
type ToolPlan struct {
	Tools  []ToolID   `json:"tools"`
	Reason PlanReason `json:"reason"`
}

// DefaultPlan returns the fixed fallback plan: all tools in canonical order
func DefaultPlan(reason PlanReason) ToolPlan {
	tools := make([]ToolID, len(AllTools))
	copy(tools, AllTools)
	return ToolPlan{Tools: tools, Reason: reason}
}

// Validate checks the plan invariants: non-empty, known tools, no duplicates
func (p ToolPlan) Validate() error {
	if len(p.Tools) == 0 {
		return ErrEmptyPlan
	}
	seen := make(map[ToolID]bool, len(p.Tools))
	for _, t := range p.Tools {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t] {
			return goerr.New("duplicate tool in plan", goerr.V("tool", t))
		}
		seen[t] = true
	}
	return nil
}
