package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vvharness/internal/capture"
	"github.com/roach88/vvharness/internal/snapshot"
)

// Case is one scenario. Exec runs in the child process against the library;
// AssertOutput runs in the parent against the child's normalized output.
type Case interface {
	// Name returns the registered tag.
	Name() string

	// Exec drives the library. Everything it acquires goes through
	// env.Scope; the executor closes the scope after Exec returns.
	Exec(ctx context.Context, env *ExecEnv) error

	// AssertOutput judges the masked output of a child that completed
	// Exec. It returns a *MismatchError when a stream differs.
	AssertOutput(out capture.Output, snaps snapshot.Resolver) error
}

// Constructor builds a Case from its serialized parameters. params is a JSON
// object and may be empty.
type Constructor func(params json.RawMessage) (Case, error)

// ErrUnknownTag matches UnknownTagError.
var ErrUnknownTag = errors.New("harness: unknown scenario tag")

// UnknownTagError is returned when no constructor is registered for a tag.
type UnknownTagError struct {
	Tag   string
	Known []string
}

// Error lists the registered tags next to the unknown one.
func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("harness: unknown scenario %q (registered: %s)", e.Tag, strings.Join(e.Known, ", "))
}

// Is matches ErrUnknownTag.
func (e *UnknownTagError) Is(target error) bool {
	return target == ErrUnknownTag
}

// Registry maps scenario tags to constructors.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// DefaultRegistry is the registry scenarios add themselves to from init.
var DefaultRegistry = NewRegistry()

// Register adds a constructor to DefaultRegistry.
func Register(tag string, ctor Constructor) {
	DefaultRegistry.Register(tag, ctor)
}

// Register adds ctor under tag. It panics if tag is empty, ctor is nil, or
// tag is already registered.
func (r *Registry) Register(tag string, ctor Constructor) {
	if tag == "" {
		panic("harness: Register with empty tag")
	}
	if ctor == nil {
		panic(fmt.Sprintf("harness: Register(%q) with nil constructor", tag))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ctors[tag]; dup {
		panic(fmt.Sprintf("harness: Register called twice for scenario %q", tag))
	}
	r.ctors[tag] = ctor
}

// Resolve builds the Case named by d.
func (r *Registry) Resolve(d Descriptor) (Case, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[d.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownTagError{Tag: d.Type, Known: r.Tags()}
	}

	// Constructors always see an object, never empty input.
	params := d.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	c, err := ctor(params)
	if err != nil {
		return nil, fmt.Errorf("harness: scenario %s: invalid parameters: %w", d.Type, err)
	}
	return c, nil
}

// Tags returns every registered tag, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Descriptor selects a scenario and carries its parameters. Serialized, it is
// a flat JSON object whose "type" member is the tag:
//
//	{"type": "user_dict_load", "style_id": 0}
type Descriptor struct {
	// Type is the scenario tag.
	Type string

	// Params holds every other member as a JSON object. Nil when there
	// are none.
	Params json.RawMessage
}

// ParseDescriptor accepts either a bare tag or a JSON descriptor object.
func ParseDescriptor(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Descriptor{}, errors.New("harness: empty scenario descriptor")
	}
	// Tags never start with a brace.
	if !strings.HasPrefix(s, "{") {
		return Descriptor{Type: s}, nil
	}
	var d Descriptor
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// String returns the tag.
func (d Descriptor) String() string { return d.Type }

// MarshalJSON flattens Type into the parameter object.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	members := map[string]json.RawMessage{}
	if len(d.Params) > 0 {
		if err := json.Unmarshal(d.Params, &members); err != nil {
			return nil, fmt.Errorf("harness: descriptor %s: params must be a JSON object: %w", d.Type, err)
		}
	}
	tag, err := json.Marshal(d.Type)
	if err != nil {
		return nil, err
	}
	members["type"] = tag
	return json.Marshal(members)
}

// UnmarshalJSON splits the "type" member from the parameters.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("harness: descriptor must be a JSON object: %w", err)
	}
	raw, ok := members["type"]
	if !ok {
		return errors.New("harness: descriptor is missing \"type\"")
	}
	var tag string
	if err := json.Unmarshal(raw, &tag); err != nil {
		return fmt.Errorf("harness: descriptor type: %w", err)
	}
	if tag == "" {
		return errors.New("harness: descriptor type is empty")
	}
	delete(members, "type")

	d.Type = tag
	d.Params = nil
	if len(members) > 0 {
		params, err := json.Marshal(members)
		if err != nil {
			return err
		}
		d.Params = params
	}
	return nil
}

// UnmarshalYAML accepts a bare tag or a mapping with a "type" key.
func (d *Descriptor) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return fmt.Errorf("line %d: empty scenario tag", node.Line)
		}
		*d = Descriptor{Type: node.Value}
		return nil
	case yaml.MappingNode:
		var members map[string]any
		if err := node.Decode(&members); err != nil {
			return err
		}
		data, err := json.Marshal(members)
		if err != nil {
			return fmt.Errorf("line %d: scenario parameters: %w", node.Line, err)
		}
		if err := d.UnmarshalJSON(data); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		return nil
	default:
		return fmt.Errorf("line %d: scenario must be a tag or a mapping", node.Line)
	}
}

// DecodeParams decodes params into v, rejecting unknown members.
func DecodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
