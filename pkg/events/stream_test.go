package events

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagents/gagents/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/anypb"
)

func envelopeOf(typeURL string) *types.Envelope {
	return &types.Envelope{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		Payload:   &anypb.Any{TypeUrl: typeURL},
	}
}

func TestMessageStream_DispatchesOnlyMatchingType(t *testing.T) {
	s := NewMessageStream(uuid.New(), 0)

	var gotA, gotB int32
	s.Subscribe("type.a", func(env *types.Envelope) { atomic.AddInt32(&gotA, 1) })
	s.Subscribe("type.b", func(env *types.Envelope) { atomic.AddInt32(&gotB, 1) })

	require.NoError(t, s.Publish(envelopeOf("type.a")))

	assert.EqualValues(t, 1, atomic.LoadInt32(&gotA))
	assert.EqualValues(t, 0, atomic.LoadInt32(&gotB))
}

func TestMessageStream_HandlerPanicIsolated(t *testing.T) {
	s := NewMessageStream(uuid.New(), 0)

	var ran int32
	s.Subscribe("type.a", func(env *types.Envelope) { panic("boom") })
	s.Subscribe("type.a", func(env *types.Envelope) { atomic.AddInt32(&ran, 1) })

	require.NoError(t, s.Publish(envelopeOf("type.a")))

	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
	assert.EqualValues(t, 1, s.ErrorCount())
}

func TestMessageStream_BackpressureWhenBoundedAndFull(t *testing.T) {
	s := NewMessageStream(uuid.New(), 1)
	defer s.Close()

	block := make(chan struct{})
	s.Subscribe("type.a", func(env *types.Envelope) { <-block })

	require.NoError(t, s.Publish(envelopeOf("type.a")))

	var lastErr error
	for i := 0; i < 50; i++ {
		if lastErr = s.Publish(envelopeOf("type.a")); lastErr != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	assert.ErrorIs(t, lastErr, types.ErrBackpressure)
	close(block)
}

func TestMessageStream_PublishAfterCloseFails(t *testing.T) {
	s := NewMessageStream(uuid.New(), 0)
	s.Close()
	assert.ErrorIs(t, s.Publish(envelopeOf("type.a")), types.ErrNotActive)
}
