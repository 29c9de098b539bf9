package dsl

import (
	"github.com/cachegrid/query/services"
)

// chain is shared by every context of one builder chain. It counts how often
// ensureOperator pushed the existing clauses into a nested group, so saved
// range contexts can follow their condition down the tree.
type chain struct {
	wraps int
}

// FilterConditionEndContext names a field and waits for the operator that
// completes the condition. Every operator method appends the condition and
// returns a FilterConditionContext for chaining further clauses.
type FilterConditionEndContext struct {
	builder *QueryBuilder // nil for detached (group) conditions
	target  *services.FilterExpression
	state   *chain
	field   string
	negated bool
}

func (c *FilterConditionEndContext) add(operator string, cond services.FilterCondition) *FilterConditionContext {
	cond.Field = c.field
	cond.Operator = operator
	cond.Negated = c.negated
	c.target.Filters = append(c.target.Filters, cond)
	return &FilterConditionContext{builder: c.builder, expr: c.target, state: c.state}
}

// Eq matches fields equal to value.
func (c *FilterConditionEndContext) Eq(value interface{}) *FilterConditionContext {
	return c.add(services.OpEq, services.FilterCondition{Value: value})
}

// Lt matches fields strictly below value.
func (c *FilterConditionEndContext) Lt(value interface{}) *FilterConditionContext {
	return c.add(services.OpLt, services.FilterCondition{Value: value})
}

// Lte matches fields below or equal to value.
func (c *FilterConditionEndContext) Lte(value interface{}) *FilterConditionContext {
	return c.add(services.OpLte, services.FilterCondition{Value: value})
}

// Gt matches fields strictly above value.
func (c *FilterConditionEndContext) Gt(value interface{}) *FilterConditionContext {
	return c.add(services.OpGt, services.FilterCondition{Value: value})
}

// Gte matches fields above or equal to value.
func (c *FilterConditionEndContext) Gte(value interface{}) *FilterConditionContext {
	return c.add(services.OpGte, services.FilterCondition{Value: value})
}

// In matches fields equal to any of the values.
func (c *FilterConditionEndContext) In(values ...interface{}) *FilterConditionContext {
	return c.add(services.OpIn, services.FilterCondition{Value: values})
}

// Like matches string fields against a SQL-style pattern ('%' any sequence,
// '_' any single character), case-insensitively.
func (c *FilterConditionEndContext) Like(pattern string) *FilterConditionContext {
	return c.add(services.OpLike, services.FilterCondition{Value: pattern})
}

// Contains matches collection fields containing value, and string fields
// containing it as a substring.
func (c *FilterConditionEndContext) Contains(value interface{}) *FilterConditionContext {
	return c.add(services.OpContains, services.FilterCondition{Value: value})
}

// ContainsAll matches fields containing every one of the values.
func (c *FilterConditionEndContext) ContainsAll(values ...interface{}) *FilterConditionContext {
	return c.add(services.OpContainsAll, services.FilterCondition{Value: values})
}

// ContainsAny matches fields containing at least one of the values.
func (c *FilterConditionEndContext) ContainsAny(values ...interface{}) *FilterConditionContext {
	return c.add(services.OpContainsAny, services.FilterCondition{Value: values})
}

// IsNull matches documents where the field is absent or nil.
func (c *FilterConditionEndContext) IsNull() *FilterConditionContext {
	return c.add(services.OpIsNull, services.FilterCondition{})
}

// Between matches fields within [from, to]; both bounds are inclusive unless
// adjusted on the returned range context.
func (c *FilterConditionEndContext) Between(from, to interface{}) *RangeConditionContext {
	fc := c.add(services.OpBetween, services.FilterCondition{
		Value:        from,
		UpperValue:   to,
		IncludeLower: true,
		IncludeUpper: true,
	})
	return &RangeConditionContext{
		FilterConditionContext: fc,
		target:                 c.target,
		index:                  len(c.target.Filters) - 1,
		born:                   c.state.wraps,
	}
}

// FilterConditionContext chains further clauses onto an expression.
type FilterConditionContext struct {
	builder *QueryBuilder
	expr    *services.FilterExpression
	state   *chain
}

// And adds another condition joined with AND.
func (c *FilterConditionContext) And(field string) *FilterConditionEndContext {
	return c.combine(services.CombinatorAnd, field, false)
}

// AndNot adds a negated condition joined with AND.
func (c *FilterConditionContext) AndNot(field string) *FilterConditionEndContext {
	return c.combine(services.CombinatorAnd, field, true)
}

// Or adds another condition joined with OR.
func (c *FilterConditionContext) Or(field string) *FilterConditionEndContext {
	return c.combine(services.CombinatorOr, field, false)
}

// OrNot adds a negated condition joined with OR.
func (c *FilterConditionContext) OrNot(field string) *FilterConditionEndContext {
	return c.combine(services.CombinatorOr, field, true)
}

// AndGroup joins a detached sub-expression (built with the package-level
// Having/Not) with AND.
func (c *FilterConditionContext) AndGroup(sub *FilterConditionContext) *FilterConditionContext {
	c.ensureOperator(services.CombinatorAnd)
	c.expr.Groups = append(c.expr.Groups, *sub.expr)
	return c
}

// OrGroup joins a detached sub-expression with OR.
func (c *FilterConditionContext) OrGroup(sub *FilterConditionContext) *FilterConditionContext {
	c.ensureOperator(services.CombinatorOr)
	c.expr.Groups = append(c.expr.Groups, *sub.expr)
	return c
}

func (c *FilterConditionContext) combine(op, field string, negated bool) *FilterConditionEndContext {
	c.ensureOperator(op)
	return &FilterConditionEndContext{builder: c.builder, target: c.expr, state: c.state, field: field, negated: negated}
}

// ensureOperator keeps the expression consistent when combinators mix:
// "a AND b OR c" becomes "(a AND b) OR c" by pushing the existing clauses
// into a nested group.
func (c *FilterConditionContext) ensureOperator(op string) {
	clauses := len(c.expr.Filters) + len(c.expr.Groups)
	if c.expr.Operator == "" || clauses <= 1 {
		c.expr.Operator = op
		return
	}
	if c.expr.Operator != op {
		inner := *c.expr
		*c.expr = services.FilterExpression{
			Operator: op,
			Groups:   []services.FilterExpression{inner},
		}
		c.state.wraps++
	}
}

// RangeConditionContext adjusts the bound inclusivity of a Between condition.
// The adjustment stays bound to that condition even after mixed-combinator
// chaining wraps it into a nested group.
type RangeConditionContext struct {
	*FilterConditionContext
	target *services.FilterExpression
	index  int
	born   int // chain wrap count when the condition was added
}

// condition follows the between condition through the group nesting that any
// later mixed-combinator chaining introduced: each wrap since creation pushed
// it one Groups[0] level deeper.
func (c *RangeConditionContext) condition() *services.FilterCondition {
	expr := c.target
	for w := c.born; w < c.state.wraps; w++ {
		expr = &expr.Groups[0]
	}
	return &expr.Filters[c.index]
}

// IncludeLower sets whether the lower bound itself matches.
func (c *RangeConditionContext) IncludeLower(include bool) *RangeConditionContext {
	c.condition().IncludeLower = include
	return c
}

// IncludeUpper sets whether the upper bound itself matches.
func (c *RangeConditionContext) IncludeUpper(include bool) *RangeConditionContext {
	c.condition().IncludeUpper = include
	return c
}
