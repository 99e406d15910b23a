// Package entities resolves an entity type name once into a Kind and
// exposes each operation as a capability the Kind may or may not have.
package entities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"zen-journal-backend/internal/store"
	"zen-journal-backend/internal/views"
)

var (
	ErrUnknownType = errors.New("unknown entity type")
	ErrUnsupported = errors.New("operation not supported for this entity type")
)

// Query is what a list request may ask for.
type Query struct {
	Filter views.Filter
	Order  store.Order
	Limit  int
}

type Kind interface {
	Name() string
}

type Lister interface {
	Kind
	List(ctx context.Context, userID string, q Query) (any, error)
}

type Creator interface {
	Kind
	Create(ctx context.Context, userID string, body json.RawMessage) (any, error)
}

type Editable interface {
	Kind
	Update(ctx context.Context, userID, id string, body json.RawMessage) error
}

type Deletable interface {
	Kind
	Delete(ctx context.Context, userID, id string) error
}

type Orderable interface {
	Kind
	Swap(ctx context.Context, userID, idA, idB string) error
}

// Registry maps type names to kinds.
type Registry struct {
	kinds   map[string]Kind
	aliases map[string]string
}

func NewRegistry(st *store.Store) *Registry {
	r := &Registry{kinds: map[string]Kind{}, aliases: map[string]string{}}
	r.register(journalEntries{st}, "entries")
	r.register(tasks{st})
	r.register(events{st}, "events")
	r.register(notes{st})
	r.register(health{st}, "health")
	return r
}

func (r *Registry) register(k Kind, aliases ...string) {
	r.kinds[k.Name()] = k
	for _, a := range aliases {
		r.aliases[a] = k.Name()
	}
}

// Resolve looks up a kind by name or alias.
func (r *Registry) Resolve(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	k, ok := r.kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return k, nil
}

// Names lists the canonical type names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kinds))
	for _, n := range []string{"journal_entries", "tasks", "calendar_events", "notes", "health_mentions"} {
		if _, ok := r.kinds[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

func unsupported(k Kind, op string) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsupported, op, k.Name())
}

// Capability helpers turn a missing capability into an explicit error.

func AsLister(k Kind) (Lister, error) {
	if c, ok := k.(Lister); ok {
		return c, nil
	}
	return nil, unsupported(k, "list")
}

func AsCreator(k Kind) (Creator, error) {
	if c, ok := k.(Creator); ok {
		return c, nil
	}
	return nil, unsupported(k, "create")
}

func AsEditable(k Kind) (Editable, error) {
	if c, ok := k.(Editable); ok {
		return c, nil
	}
	return nil, unsupported(k, "update")
}

func AsDeletable(k Kind) (Deletable, error) {
	if c, ok := k.(Deletable); ok {
		return c, nil
	}
	return nil, unsupported(k, "delete")
}

func AsOrderable(k Kind) (Orderable, error) {
	if c, ok := k.(Orderable); ok {
		return c, nil
	}
	return nil, unsupported(k, "reorder")
}
