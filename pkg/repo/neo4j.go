package repo

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the part of a Neo4j result set the repositories read.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Session runs Cypher statements. It is satisfied by an adapted
// neo4j.SessionWithContext and by test fakes.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// SessionFunc opens a new session.
type SessionFunc func(ctx context.Context) Session

// DriverSessions opens default-database sessions on driver.
func DriverSessions(driver neo4j.DriverWithContext) SessionFunc {
	return func(ctx context.Context) Session {
		return &driverSession{sess: driver.NewSession(ctx, neo4j.SessionConfig{})}
	}
}

type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s *driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

// Exec runs one statement in a fresh session and returns every record.
func Exec(ctx context.Context, sessions SessionFunc, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	sess := sessions(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	var out []*neo4j.Record
	for res.Next(ctx) {
		out = append(out, res.Record())
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Neo4jRepo stores T as nodes with a single label, keyed by one property.
type Neo4jRepo[T any, ID comparable] struct {
	sessions  SessionFunc
	label     string
	idKey     string
	toMap     func(T) map[string]any
	fromProps func(map[string]any) (T, error)
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// NewNeo4jRepo creates a new Neo4j-backed repository.
func NewNeo4jRepo[T any, ID comparable](
	sessions SessionFunc,
	label string,
	toMap func(T) map[string]any,
	fromProps func(map[string]any) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		sessions:  sessions,
		label:     label,
		idKey:     "id",
		toMap:     toMap,
		fromProps: fromProps,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

func (r *Neo4jRepo[T, ID]) decode(rec *neo4j.Record) (T, error) {
	var zero T
	raw, ok := rec.Get("props")
	if !ok {
		return zero, fmt.Errorf("repo: %s: record without props", r.label)
	}
	props, ok := raw.(map[string]any)
	if !ok {
		return zero, fmt.Errorf("repo: %s: props is %T", r.label, raw)
	}
	return r.fromProps(props)
}

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN properties(n) AS props", r.label, r.idKey)
	recs, err := Exec(ctx, r.sessions, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, fmt.Errorf("repo: get %s: %w", r.label, err)
	}
	if len(recs) == 0 {
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return r.decode(recs[0])
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN properties(n) AS props ORDER BY n.%s SKIP $offset LIMIT $limit", r.label, r.idKey)
	recs, err := Exec(ctx, r.sessions, cypher, map[string]any{"offset": opts.Offset, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("repo: list %s: %w", r.label, err)
	}
	items := make([]T, 0, len(recs))
	for _, rec := range recs {
		item, err := r.decode(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Merge creates the node keyed by the entity's id property or updates
// its properties in place.
func (r *Neo4jRepo[T, ID]) Merge(ctx context.Context, entity T) error {
	props := r.toMap(entity)
	id, ok := props[r.idKey]
	if !ok {
		return fmt.Errorf("repo: merge %s: missing %q", r.label, r.idKey)
	}
	cypher := fmt.Sprintf("MERGE (n:%s {%s: $id}) SET n += $props", r.label, r.idKey)
	if _, err := Exec(ctx, r.sessions, cypher, map[string]any{"id": id, "props": props}); err != nil {
		return fmt.Errorf("repo: merge %s: %w", r.label, err)
	}
	return nil
}

func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey)
	if _, err := Exec(ctx, r.sessions, cypher, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("repo: delete %s: %w", r.label, err)
	}
	return nil
}
