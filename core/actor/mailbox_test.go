package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqlang/torqlang/core/klvm"
)

func TestMailboxOrdersByPriorityPreservingArrivalWithinClass(t *testing.T) {
	mb := NewMailbox()
	mb.Insert(Envelope{Kind: KindNotify, Priority: PriorityMessage, Message: klvm.Int64(1)})
	mb.Insert(Envelope{Kind: KindNotify, Priority: PriorityMessage, Message: klvm.Int64(2)})
	mb.Insert(Envelope{Kind: KindControl, Priority: PriorityControl, Control: ControlPause})
	mb.Insert(Envelope{Kind: KindResponse, Priority: PriorityResponse, Message: klvm.Int64(3)})

	var kinds []EnvelopeKind
	var order []int64
	for {
		e, ok := mb.RemoveNext()
		if !ok {
			break
		}
		kinds = append(kinds, e.Kind)
		if e.Message != nil {
			order = append(order, int64(e.Message.(klvm.Int64)))
		}
	}
	require.Len(t, kinds, 4)
	assert.Equal(t, []EnvelopeKind{KindControl, KindResponse, KindNotify, KindNotify}, kinds)
	assert.Equal(t, []int64{3, 1, 2}, order)
}

func TestMailboxIsEmptyAndLen(t *testing.T) {
	mb := NewMailbox()
	assert.True(t, mb.IsEmpty())
	assert.Equal(t, 0, mb.Len())

	mb.Insert(Envelope{Kind: KindNotify, Priority: PriorityMessage})
	assert.False(t, mb.IsEmpty())
	assert.Equal(t, 1, mb.Len())
}

func TestMailboxSelectNextBatchCollectsOnlyLeadingResponses(t *testing.T) {
	mb := NewMailbox()
	mb.Insert(Envelope{Kind: KindResponse, Priority: PriorityResponse})
	mb.Insert(Envelope{Kind: KindResponse, Priority: PriorityResponse})
	mb.Insert(Envelope{Kind: KindNotify, Priority: PriorityMessage})

	batch := mb.SelectNextBatch()
	assert.Len(t, batch, 2)
	assert.Equal(t, 1, mb.Len())

	// Front is no longer a response: SelectNextBatch must no-op.
	batch = mb.SelectNextBatch()
	assert.Nil(t, batch)
	assert.Equal(t, 1, mb.Len())
}

func TestMailboxPeekNextDoesNotRemove(t *testing.T) {
	mb := NewMailbox()
	mb.Insert(Envelope{Kind: KindNotify, Priority: PriorityMessage})

	_, ok := mb.PeekNext()
	require.True(t, ok)
	assert.Equal(t, 1, mb.Len())
}
