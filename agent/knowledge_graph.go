package agent

import "context"

// KnowledgeGraph is the optional external collaborator an Agent can be
// attached to. The core never parses the SPARQL it forwards through
// QueryGraph — it only passes strings through, per spec §6.
type KnowledgeGraph interface {
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
	AddTriple(ctx context.Context, subject, predicate, object string) error
	// RemoveTriple removes a triple. object == nil removes every triple
	// matching (subject, predicate, *).
	RemoveTriple(ctx context.Context, subject, predicate string, object *string) error
	QueryGraph(ctx context.Context, sparql string) (any, error)
	UpdateGraph(ctx context.Context, data map[string]any) error
}
