// Package guardrail sanitizes feedback text before it reaches the analysis
// pipeline. Sanitation rules are Rego policies: the embedded default policy
// redacts common PII patterns, and operators can replace it with their own
// policy directory.
package guardrail

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed policy/default.rego
var defaultPolicyRaw string

const policyQuery = "data.guardrail"

// Verdict is the result of sanitizing one text
type Verdict struct {
	Text     string
	Redacted bool
}

// Guardrail evaluates the sanitation policy against feedback texts
type Guardrail struct {
	query *rego.PreparedEvalQuery
}

// New prepares the guardrail. With an empty policyDir the embedded default
// policy applies; otherwise all .rego files in the directory are loaded
// instead.
func New(ctx context.Context, policyDir string) (*Guardrail, error) {
	modules, err := loadModules(policyDir)
	if err != nil {
		return nil, err
	}

	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query(policyQuery))
	options = append(options, modules...)

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare guardrail policy")
	}

	return &Guardrail{query: &prepared}, nil
}

func loadModules(policyDir string) ([]func(*rego.Rego), error) {
	if policyDir == "" {
		return []func(*rego.Rego){
			rego.Module("default.rego", defaultPolicyRaw),
		}, nil
	}

	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}
	if len(files) == 0 {
		return nil, goerr.New("no policy files found", goerr.V("dir", policyDir))
	}

	modules := make([]func(*rego.Rego), 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules = append(modules, rego.Module(file, string(data)))
	}
	return modules, nil
}

// Sanitize applies the policy to one feedback text
func (g *Guardrail) Sanitize(ctx context.Context, text string) (*Verdict, error) {
	rs, err := g.query.Eval(ctx, rego.EvalInput(map[string]any{
		"text": text,
	}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate guardrail policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, goerr.New("guardrail policy produced no result")
	}

	doc, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("unexpected guardrail policy output type")
	}

	verdict := &Verdict{Text: text}
	if sanitized, ok := doc["text"].(string); ok {
		verdict.Text = sanitized
	}
	if redacted, ok := doc["redacted"].(bool); ok {
		verdict.Redacted = redacted
	}
	return verdict, nil
}
