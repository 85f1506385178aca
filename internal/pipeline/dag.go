// Package pipeline implements the dependency-ordered module executor that
// drives a document through its analysis stages. Nodes declare dependencies
// by name; the engine computes a deterministic topological order once at
// construction and replays it for every document so audit traces are
// reproducible.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"govdociq/internal/pipeline/metrics"
	dErrors "govdociq/pkg/domain-errors"
)

var tracer = otel.Tracer("govdociq/pipeline")

// Seed is the immutable per-run input every node can read.
type Seed struct {
	TenantID    string
	DocumentID  string
	CitizenID   string
	FileName    string
	RawText     string
	DocTypeHint string
	Prefilled   map[string]string
	JobID       string
}

// Input is what a node function receives: the seed plus the outputs of its
// declared dependencies only. Undeclared upstream outputs are deliberately
// invisible to keep data dependencies explicit.
type Input struct {
	Seed Seed
	Deps map[string]any
}

// Dep returns a dependency output by node name. The engine guarantees the
// key exists for every declared dependency, so the type assertion at the
// call site is the only failure mode.
func (in Input) Dep(name string) any { return in.Deps[name] }

// NodeFunc computes a node's output. It must not mutate the inputs; it may
// perform I/O but must honor ctx cancellation.
type NodeFunc func(ctx context.Context, in Input) (any, error)

// Node is a named analysis step with explicit declared dependencies.
type Node struct {
	Name      string
	DependsOn []string
	Fn        NodeFunc
}

// Result is the execution context accumulated over one pipeline run.
type Result struct {
	Seed           Seed
	Outputs        map[string]any
	ExecutionOrder []string
	NodeDurations  map[string]time.Duration
}

// Output returns the named node output, or nil when the node did not run.
func (r *Result) Output(name string) any { return r.Outputs[name] }

// Engine executes a fixed node set in topological order. Construction fails
// on unknown dependency references (configuration error) or cycles (cycle
// error); a failed construction executes nothing.
type Engine struct {
	nodes   map[string]Node
	order   []string
	metrics *metrics.Metrics
}

// New validates the node set and precomputes the execution order.
func New(nodes []Node, m *metrics.Metrics) (*Engine, error) {
	byName := make(map[string]Node, len(nodes))
	declared := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := byName[n.Name]; dup {
			return nil, dErrors.Newf(dErrors.CodeConfiguration, "duplicate node %q", n.Name)
		}
		byName[n.Name] = n
		declared = append(declared, n.Name)
	}

	order, err := topologicalOrder(byName, declared)
	if err != nil {
		return nil, err
	}
	return &Engine{nodes: byName, order: order, metrics: m}, nil
}

// Order returns the precomputed execution order.
func (e *Engine) Order() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Run executes every node in order. Each node sees the seed plus the outputs
// of its declared dependencies. The first node error aborts the run; partial
// outputs up to that point are returned alongside the error so callers can
// record what completed.
func (e *Engine) Run(ctx context.Context, seed Seed) (*Result, error) {
	res := &Result{
		Seed:           seed,
		Outputs:        make(map[string]any, len(e.order)),
		ExecutionOrder: make([]string, 0, len(e.order)),
		NodeDurations:  make(map[string]time.Duration, len(e.order)),
	}

	for _, name := range e.order {
		if err := ctx.Err(); err != nil {
			return res, dErrors.Wrap(dErrors.CodeInternal, "pipeline run canceled", err)
		}

		node := e.nodes[name]
		deps := make(map[string]any, len(node.DependsOn))
		for _, dep := range node.DependsOn {
			deps[dep] = res.Outputs[dep]
		}

		nodeCtx, span := tracer.Start(ctx, "pipeline."+name,
			trace.WithAttributes(
				attribute.String("document.id", seed.DocumentID),
				attribute.String("tenant.id", seed.TenantID),
			))
		start := time.Now()
		out, err := node.Fn(nodeCtx, Input{Seed: seed, Deps: deps})
		elapsed := time.Since(start)
		span.End()

		res.NodeDurations[name] = elapsed
		if e.metrics != nil {
			e.metrics.ObserveNodeDuration(name, elapsed)
		}
		if err != nil {
			if e.metrics != nil {
				e.metrics.IncrementNodeFailure(name)
			}
			return res, dErrors.Wrap(dErrors.CodeInternal, "node "+name+" failed", err)
		}

		res.Outputs[name] = out
		res.ExecutionOrder = append(res.ExecutionOrder, name)
	}

	if e.metrics != nil {
		e.metrics.IncrementRuns()
	}
	return res, nil
}

// topologicalOrder runs Kahn's algorithm over the dependency edges. Ties
// between nodes of equal in-degree are broken by declaration order, which
// keeps execution traces stable across runs.
func topologicalOrder(nodes map[string]Node, declared []string) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	for _, name := range declared {
		indegree[name] = 0
	}

	for _, name := range declared {
		node := nodes[name]
		for _, dep := range node.DependsOn {
			if _, ok := nodes[dep]; !ok {
				return nil, dErrors.Newf(dErrors.CodeConfiguration,
					"node %q depends on unknown node %q", node.Name, dep)
			}
			indegree[node.Name]++
			adjacency[dep] = append(adjacency[dep], node.Name)
		}
	}

	queue := make([]string, 0, len(declared))
	for _, name := range declared {
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	position := make(map[string]int, len(declared))
	for i, name := range declared {
		position[name] = i
	}

	order := make([]string, 0, len(declared))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range adjacency[current] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = insertByDeclaration(queue, next, position)
			}
		}
	}

	if len(order) != len(declared) {
		return nil, dErrors.New(dErrors.CodeCycle, "pipeline graph has a cycle")
	}
	return order, nil
}

// insertByDeclaration keeps the ready queue sorted by declaration order.
func insertByDeclaration(queue []string, name string, position map[string]int) []string {
	i := len(queue)
	for j, existing := range queue {
		if position[name] < position[existing] {
			i = j
			break
		}
	}
	queue = append(queue, "")
	copy(queue[i+1:], queue[i:])
	queue[i] = name
	return queue
}
