// Package expr provides a sandboxed boolean/arithmetic expression
// evaluator used by the event bus and automation engine in place of the
// host-language eval() the original implementation relied on.
//
// Design notes: the evaluator never sees identifiers. Callers are responsible for
// substituting every `$name` token with its resolved literal value before
// handing the string to Eval; by the time the expression reaches the VM it
// contains only numbers, strings, parentheses and the operators
// `< <= == >= > + - * / % and or not`. A fresh otto VM is created per call
// and discarded afterward, so no state — and no side effect performed by
// a pathological expression — can leak between unrelated evaluations.
package expr

import (
	"fmt"
	"strings"

	"github.com/robertkrimen/otto"
)

// Eval evaluates expression and returns its boolean result; a result of
// any other type (a number, a string) is an error. `and`,
// `or` and `not` are accepted as aliases for `&&`, `||` and `!` so that
// event/automation declarations can use a plain-word vocabulary
// directly.
func Eval(expression string) (bool, error) {
	vm := otto.New()

	script := translate(expression)
	val, err := vm.Run(script)
	if err != nil {
		return false, fmt.Errorf("expr: evaluate %q: %w", expression, err)
	}
	if !val.IsBoolean() {
		return false, fmt.Errorf("expr: non-boolean result for %q", expression)
	}

	b, err := val.ToBoolean()
	if err != nil {
		return false, fmt.Errorf("expr: non-boolean result for %q: %w", expression, err)
	}
	return b, nil
}

// translate rewrites plain-word boolean operators onto JavaScript's
// symbolic ones. Word boundaries are approximated with surrounding spaces, which is
// sufficient because callers only ever substitute fully-resolved literals
// around these keywords (no identifier could collide with "and"/"or"/"not"
// since identifiers never appear in the input by construction).
func translate(expression string) string {
	r := strings.NewReplacer(
		" and ", " && ",
		" or ", " || ",
		"not ", "!",
	)
	return r.Replace(expression)
}
