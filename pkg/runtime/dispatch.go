package runtime

import (
	"context"

	"github.com/gagents/gagents/pkg/types"
	"google.golang.org/protobuf/proto"
)

// HandlerFunc is the explicit-registration replacement for reflection-based
// handler discovery: the contract the design notes ask for is simply
// "payload_type -> handler function".
type HandlerFunc func(ctx context.Context, rt *AgentRuntime, payload proto.Message, env *types.Envelope) error

// dispatchTable maps a payload type_url to every handler declared for it.
// Multiple handlers per type are supported and run independently so one
// handler's failure cannot suppress another's.
type dispatchTable struct {
	handlers map[string][]HandlerFunc
}

func newDispatchTable() *dispatchTable {
	return &dispatchTable{handlers: make(map[string][]HandlerFunc)}
}

func (d *dispatchTable) register(typeURL string, fn HandlerFunc) {
	d.handlers[typeURL] = append(d.handlers[typeURL], fn)
}

func (d *dispatchTable) lookup(typeURL string) []HandlerFunc {
	return d.handlers[typeURL]
}
