package core

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
)

// FilterPolicies drops policy entries whose `when` expression evaluates to
// false for the given platform and standard, rewriting the tree so that
// templates only see the surviving entries. Entries without a `when` key
// are always kept, as is anything that is not a mapping (shallow
// validation leaves those for render time to reject).
func (c *Config) FilterPolicies(platform, standard string, vars map[string]any) error {
	root, ok := c.Tree.(map[string]any)
	if !ok {
		return nil
	}

	raw, ok := root["policies"].([]any)
	if !ok {
		return nil
	}

	kept := make([]any, 0, len(raw))
	for i, entry := range raw {
		policy, ok := entry.(map[string]any)
		if !ok {
			kept = append(kept, entry)
			continue
		}

		code, _ := policy["when"].(string)
		if code == "" {
			kept = append(kept, entry)
			continue
		}

		program, err := compileWhen(code)
		if err != nil {
			return fmt.Errorf("policy %d: invalid when expression %q: %w", i, code, err)
		}

		enabled, err := evalWhen(program, map[string]any{
			"platform": platform,
			"standard": standard,
			"name":     policy["name"],
			"vars":     vars,
		})
		if err != nil {
			return fmt.Errorf("policy %d: when expression %q: %w", i, code, err)
		}

		if !enabled {
			log.Debug().Int("policy", i).Str("when", code).Msg("policy disabled by when expression")
			continue
		}

		kept = append(kept, entry)
	}

	root["policies"] = kept
	return nil
}

// compileWhen compiles a when expression once for reuse.
func compileWhen(code string) (*vm.Program, error) {
	return expr.Compile(code, expr.AsBool())
}

// evalWhen evaluates a pre-compiled when expression with the given context.
func evalWhen(program *vm.Program, env map[string]any) (bool, error) {
	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	// expr.AsBool() ensures output is always bool
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to boolean, got %T", output)
	}

	return result, nil
}
