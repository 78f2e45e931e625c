package tool

import (
	"github.com/m-mizutani/murmur/pkg/adapter"
	"github.com/m-mizutani/murmur/pkg/model"
)

// Registry holds the closed tool set, preserving registration order
type Registry struct {
	tools map[model.ToolID]Tool
	order []model.ToolID
}

// New creates a registry with the given tools. Later registrations of the
// same ID replace earlier ones.
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools: make(map[model.ToolID]Tool, len(tools)),
	}
	for _, t := range tools {
		if _, ok := r.tools[t.ID()]; !ok {
			r.order = append(r.order, t.ID())
		}
		r.tools[t.ID()] = t
	}
	return r
}

// NewAnalysis creates the standard registry of the four feedback-analysis
// tools, in canonical order
func NewAnalysis(gemini adapter.Gemini) *Registry {
	return New(
		&Sentiment{gemini: gemini},
		&Topics{gemini: gemini},
		&Keywords{gemini: gemini},
		&Summary{gemini: gemini},
	)
}

// Lookup returns the tool registered under id
func (r *Registry) Lookup(id model.ToolID) (Tool, bool) {
	t, ok := r.tools[id]
	return t, ok
}

// Descriptions returns one "- **id**: description" line per tool in
// registration order, for the tool-selection prompt
func (r *Registry) Descriptions() []string {
	lines := make([]string, 0, len(r.order))
	for _, id := range r.order {
		lines = append(lines, "- **"+string(id)+"**: "+r.tools[id].Description())
	}
	return lines
}

// IDs returns all registered tool identifiers in registration order
func (r *Registry) IDs() []model.ToolID {
	ids := make([]model.ToolID, len(r.order))
	copy(ids, r.order)
	return ids
}
