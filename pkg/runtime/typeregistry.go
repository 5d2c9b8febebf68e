package runtime

import (
	"fmt"
	"sync"

	"github.com/gagents/gagents/pkg/types"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// TypeFactory builds a fresh, zero-valued instance of a registered payload
// schema; Unpack decodes into it.
type TypeFactory func() proto.Message

// TypeRegistry is the process-scope type_url -> schema cache the design
// notes call for: lazily and additively populated, read far more often
// than written, so a sync.Map (built for that access pattern) stands in
// for the lock-free concurrent map the source's global static cache used.
type TypeRegistry struct {
	factories sync.Map // string -> TypeFactory
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{}
}

// Register associates a type_url with a factory. Re-registering the same
// type_url overwrites the previous factory; callers normally register once
// at process init.
func (r *TypeRegistry) Register(typeURL string, factory TypeFactory) {
	r.factories.Store(typeURL, factory)
}

// Unpack resolves a's type_url against the registry and decodes its value
// into a fresh instance. Returns types.ErrTypeUnknown if nothing is
// registered for the type_url.
func (r *TypeRegistry) Unpack(a *anypb.Any) (proto.Message, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil payload", types.ErrInvalidArgument)
	}
	v, ok := r.factories.Load(a.TypeUrl)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTypeUnknown, a.TypeUrl)
	}
	msg := v.(TypeFactory)()
	if err := a.UnmarshalTo(msg); err != nil {
		return nil, fmt.Errorf("unmarshal payload for %s: %w", a.TypeUrl, err)
	}
	return msg, nil
}

// Pack wraps payload in an anypb.Any, deriving its type_url from the
// message's own descriptor (and implicitly registering nothing — callers
// must Register a factory separately for replay to later resolve it).
func Pack(payload proto.Message) (*anypb.Any, error) {
	return anypb.New(payload)
}
