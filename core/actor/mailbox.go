package actor

// Mailbox is a priority queue of Envelopes. It is not safe for
// concurrent use; the owning Actor's dispatch loop is its only caller.
//
// Insertion uses "bubble swap": a new envelope is appended at the back
// of the whole queue, then swapped leftward past any envelope of
// strictly lower priority (numerically greater Priority value) until
// it meets one of equal or higher priority. This keeps control traffic
// always at the front and response traffic ahead of notify/request
// traffic, while preserving arrival order within a priority class, in
// O(n) worst case and O(1) for the common case of same-priority
// arrivals.
type Mailbox struct {
	entries []Envelope
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

func (mb *Mailbox) Insert(e Envelope) {
	mb.entries = append(mb.entries, e)
	i := len(mb.entries) - 1
	for i > 0 && mb.entries[i-1].Priority > e.Priority {
		mb.entries[i-1], mb.entries[i] = mb.entries[i], mb.entries[i-1]
		i--
	}
}

func (mb *Mailbox) Len() int { return len(mb.entries) }

func (mb *Mailbox) IsEmpty() bool { return len(mb.entries) == 0 }

// PeekNext returns the front envelope without removing it.
func (mb *Mailbox) PeekNext() (Envelope, bool) {
	if len(mb.entries) == 0 {
		return Envelope{}, false
	}
	return mb.entries[0], true
}

// RemoveNext removes and returns the front envelope.
func (mb *Mailbox) RemoveNext() (Envelope, bool) {
	e, ok := mb.PeekNext()
	if !ok {
		return Envelope{}, false
	}
	mb.entries = mb.entries[1:]
	return e, true
}

// SelectNextBatch removes and returns the longest contiguous run of
// KindResponse envelopes at the front of the mailbox. If the front
// envelope is not a response (or the mailbox is empty), it returns nil and
// leaves the mailbox untouched, signaling the caller to fall back to
// RemoveNext for ordinary single-envelope processing.
//
// Batching responses is what lets the response-binding fixed point in
// dispatch.go make as much simultaneous progress as possible per
// scheduling turn instead of re-running compute() once per response.
func (mb *Mailbox) SelectNextBatch() []Envelope {
	if len(mb.entries) == 0 || mb.entries[0].Kind != KindResponse {
		return nil
	}
	n := 0
	for n < len(mb.entries) && mb.entries[n].Kind == KindResponse {
		n++
	}
	batch := mb.entries[:n]
	mb.entries = mb.entries[n:]
	out := make([]Envelope, len(batch))
	copy(out, batch)
	return out
}
