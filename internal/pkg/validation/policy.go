// internal/pkg/validation/policy.go
package validation

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/rs/zerolog/log"
)

// Rule 是一条 CEL 规则，Expression 必须求值为 bool，false 表示违反规则
type Rule struct {
	Name       string
	Expression string
	Field      string
	Message    string
}

type Violation struct {
	Rule    string
	Field   string
	Message string
}

type compiledRule struct {
	Rule
	program cel.Program
}

// PolicyEngine 持有编译好的规则，可并发使用
type PolicyEngine struct {
	rules []compiledRule
}

// NewPolicyEngine 用给定的变量声明编译全部规则，任一规则无法编译都会返回错误
func NewPolicyEngine(vars map[string]*cel.Type, rules []Rule) (*PolicyEngine, error) {
	opts := make([]cel.EnvOption, 0, len(vars))
	for name, typ := range vars {
		opts = append(opts, cel.Variable(name, typ))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel env: %w", err)
	}

	engine := &PolicyEngine{}
	for _, r := range rules {
		ast, iss := env.Compile(r.Expression)
		if iss != nil && iss.Err() != nil {
			return nil, fmt.Errorf("policy %q: %w", r.Name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("policy %q must evaluate to bool, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", r.Name, err)
		}
		engine.rules = append(engine.rules, compiledRule{Rule: r, program: prg})
	}
	return engine, nil
}

// Evaluate 返回所有被违反的规则。求值出错的规则按违反处理
func (e *PolicyEngine) Evaluate(input map[string]any) []Violation {
	if e == nil {
		return nil
	}
	var violations []Violation
	for _, r := range e.rules {
		out, _, err := r.program.Eval(input)
		if err != nil {
			log.Warn().Err(err).Str("policy", r.Name).Msg("policy evaluation failed")
			violations = append(violations, r.violation())
			continue
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			violations = append(violations, r.violation())
		}
	}
	return violations
}

func (r compiledRule) violation() Violation {
	msg := r.Message
	if msg == "" {
		msg = fmt.Sprintf("violates policy %s", r.Name)
	}
	return Violation{Rule: r.Name, Field: r.Field, Message: msg}
}
