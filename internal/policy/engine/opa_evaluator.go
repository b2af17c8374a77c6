package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const ledgerQuery = "data.smartbanker.ledger"

// Default Rego policy: every well-formed mutation is allowed.
const defaultRegoPolicy = `package smartbanker.ledger

default allow := true

default reason := ""
`

// OPAEvaluator evaluates ledger policies using OPA Rego. Modules are compiled once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policies (Rego source) and prepares the ledger query. With no policies
// the default allow-all policy is used. Policies must declare package smartbanker.ledger and may
// define allow (bool) and reason (string).
func NewOPAEvaluator(ctx context.Context, policies ...string) (*OPAEvaluator, error) {
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}
	modules := make(map[string]string, len(policies))
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	query, err := rego.New(
		rego.Query(ledgerQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare ledger query: %w", err)
	}
	return &OPAEvaluator{query: query}, nil
}

// LoadPolicyFile reads a Rego module from path.
func LoadPolicyFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy file: %w", err)
	}
	return string(b), nil
}

// HealthCheck evaluates the prepared query against a minimal deposit. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.EvaluateLedger(ctx, LedgerInput{Operation: "deposit", Username: "healthcheck"})
	return err
}

// EvaluateLedger evaluates the ledger policy for in. allow defaults to true when the policy
// leaves it undefined.
func (e *OPAEvaluator) EvaluateLedger(ctx context.Context, in LedgerInput) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(in)))
	if err != nil {
		return Decision{}, fmt.Errorf("eval ledger policy: %w", err)
	}
	out := Decision{Allow: true}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return out, nil
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("ledger policy returned %T", rs[0].Expressions[0].Value)
	}
	if v, ok := doc["allow"].(bool); ok {
		out.Allow = v
	}
	if v, ok := doc["reason"].(string); ok {
		out.Reason = v
	}
	return out, nil
}

// Amounts are passed as json.Number so Rego compares them exactly.
func buildInput(in LedgerInput) map[string]interface{} {
	return map[string]interface{}{
		"operation":         in.Operation,
		"username":          in.Username,
		"amount":            json.Number(in.Amount.String()),
		"balance":           json.Number(in.Balance.String()),
		"age":               in.Age,
		"transaction_count": in.TransactionCount,
	}
}
