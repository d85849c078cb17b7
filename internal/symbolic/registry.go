package symbolic

import (
	"strings"
)

// Signature is the tuple of layer kinds an operator rule dispatches on.
type Signature []LayerKind

// String renders the signature as "(dense, dense)".
func (s Signature) String() string {
	parts := make([]string, len(s))
	for i, k := range s {
		parts[i] = k.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// key is the exact-lookup map key for a signature.
func (s Signature) key() string { return s.String() }

// matches reports whether every queried kind refines the corresponding
// declared kind.
func (s Signature) matches(query Signature) bool {
	if len(s) != len(query) {
		return false
	}
	for i, declared := range s {
		if !query[i].IsA(declared) {
			return false
		}
	}
	return true
}

// RuleFunc rewrites the given operand layers into a circuit block. The
// operands are layers of the operand circuit(s); the returned fragment
// consists of fresh layers carrying provenance back to them.
type RuleFunc func(operands ...*Layer) (*CircuitBlock, error)

type ruleEntry struct {
	sig Signature
	fn  RuleFunc
}

// OperatorRegistry maps (operator, operand-kind signature) pairs to
// rewrite rules. Dispatch tries an exact signature first and then scans
// the declared signatures in registration order, accepting the first
// one every queried kind refines; that resolution is cached back under
// the exact queried signature, so repeated lookups for the same
// concrete kinds are map hits.
//
// Registries are not safe for concurrent use; a compilation context
// owns its registry and callers serialize access.
type OperatorRegistry struct {
	ordered map[Operator][]ruleEntry
	exact   map[Operator]map[string]RuleFunc
}

// NewOperatorRegistry creates an empty registry.
func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{
		ordered: make(map[Operator][]ruleEntry),
		exact:   make(map[Operator]map[string]RuleFunc),
	}
}

// DefaultRegistry creates a registry seeded with the built-in
// integration, differentiation, and multiplication rules.
func DefaultRegistry() *OperatorRegistry {
	r := NewOperatorRegistry()
	registerDefaultRules(r)
	return r
}

// Register records a rewrite rule under the given operator and operand
// signature. A commutative registration of a two-operand rule also
// records the mirrored signature with the operands swapped, unless both
// kinds are equal; rules of any other arity are registered only under
// their declared signature.
func (r *OperatorRegistry) Register(op Operator, sig Signature, fn RuleFunc, commutative bool) error {
	if fn == nil {
		return &RuleError{Message: "rule function must not be nil"}
	}
	if len(sig) == 0 {
		return &RuleError{Message: "signature must name at least one operand layer kind"}
	}
	for _, k := range sig {
		if k < KindInput || k > KindKronecker {
			return &RuleError{Message: "signature must consist of layer kinds only"}
		}
	}
	r.put(op, sig, fn)
	if commutative && len(sig) == 2 && sig[0] != sig[1] {
		mirrored := Signature{sig[1], sig[0]}
		r.put(op, mirrored, func(operands ...*Layer) (*CircuitBlock, error) {
			return fn(operands[1], operands[0])
		})
	}
	return nil
}

func (r *OperatorRegistry) put(op Operator, sig Signature, fn RuleFunc) {
	r.ordered[op] = append(r.ordered[op], ruleEntry{sig: sig, fn: fn})
	if r.exact[op] == nil {
		r.exact[op] = make(map[string]RuleFunc)
	}
	r.exact[op][sig.key()] = fn
}

// RetrieveRule resolves the rule for the operator and the concrete
// operand kinds. Sub-kind resolutions are cached; see the type comment.
func (r *OperatorRegistry) RetrieveRule(op Operator, kinds ...LayerKind) (RuleFunc, error) {
	entries, ok := r.ordered[op]
	if !ok {
		return nil, &OperatorNotFoundError{Op: op}
	}
	query := Signature(kinds)
	if fn, ok := r.exact[op][query.key()]; ok {
		return fn, nil
	}
	for _, e := range entries {
		if e.sig.matches(query) {
			// Cache the refinement hit under the exact queried
			// signature. This is an optimization only and must not
			// change observable dispatch results.
			r.exact[op][query.key()] = e.fn
			return e.fn, nil
		}
	}
	return nil, &SignatureNotFoundError{Op: op, Signature: query}
}

// HasRule reports whether RetrieveRule would succeed, without mutating
// the cache.
func (r *OperatorRegistry) HasRule(op Operator, kinds ...LayerKind) bool {
	entries, ok := r.ordered[op]
	if !ok {
		return false
	}
	query := Signature(kinds)
	if _, ok := r.exact[op][query.key()]; ok {
		return true
	}
	for _, e := range entries {
		if e.sig.matches(query) {
			return true
		}
	}
	return false
}

// Operators returns the operators with at least one registered rule.
func (r *OperatorRegistry) Operators() []Operator {
	out := make([]Operator, 0, len(r.ordered))
	for op := range r.ordered {
		out = append(out, op)
	}
	return out
}
