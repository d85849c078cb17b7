package compiler

import (
	"github.com/go-logr/logr"

	"github.com/probcirc/circ/internal/symbolic"
)

// Context carries the state of one pipeline compilation: the backend
// factory, the operator registry consulted for sanity checks, the plans
// already produced, and the parameter memo that realizes cross-circuit
// sharing. A context is not safe for concurrent use.
type Context struct {
	logger   logr.Logger
	factory  Factory
	registry *symbolic.OperatorRegistry

	plans   map[*symbolic.Circuit]*Plan
	tensors map[symbolic.Param]Tensor
}

// Option configures a compilation context.
type Option func(*Context)

// WithLogger routes compilation logs to l.
func WithLogger(l logr.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithFactory selects the backend factory.
func WithFactory(f Factory) Option {
	return func(c *Context) { c.factory = f }
}

// WithRegistry selects the operator registry used to vet layer
// provenance.
func WithRegistry(r *symbolic.OperatorRegistry) Option {
	return func(c *Context) { c.registry = r }
}

// NewContext builds a compilation context. Logging defaults to discard
// and the registry to the built-in rules; the factory has no default
// and must be supplied.
func NewContext(opts ...Option) *Context {
	c := &Context{
		logger:  logr.Discard(),
		plans:   make(map[*symbolic.Circuit]*Plan),
		tensors: make(map[symbolic.Param]Tensor),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = symbolic.DefaultRegistry()
	}
	return c
}

// Registry returns the operator registry bound to the context.
func (c *Context) Registry() *symbolic.OperatorRegistry { return c.registry }

// Plan returns the compiled plan for a circuit, or nil if the circuit
// was not part of this context's pipeline.
func (c *Context) Plan(circuit *symbolic.Circuit) *Plan { return c.plans[circuit] }
