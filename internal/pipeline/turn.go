package pipeline

import (
	"sync"
	"time"
)

// End reasons for a captured turn.
const (
	EndSilence   = "silence"
	EndMaxRecord = "max_record"
)

// Ticket tracks one turn through the pipeline. It is done once the reply
// has been played or the turn was dropped by any stage.
type Ticket struct {
	once sync.Once
	done chan struct{}
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

// Done marks the turn finished. It is safe to call more than once and on a
// nil Ticket.
func (t *Ticket) Done() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.done) })
}

// Wait returns a channel closed when the ticket is done. A nil Ticket is
// always done.
func (t *Ticket) Wait() <-chan struct{} {
	if t == nil {
		return closedCh
	}
	return t.done
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Turn is one captured utterance, from speech onset to end of turn.
type Turn struct {
	Number     int64
	Samples    []int16
	SampleRate int
	// Onset is the audio offset of the first buffered sample, measured from
	// the start of recording for this turn.
	Onset     time.Duration
	EndReason string

	ticket *Ticket
}

// Duration returns the length of the buffered audio.
func (t *Turn) Duration() time.Duration {
	if t.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(t.Samples)) * time.Second / time.Duration(t.SampleRate)
}

// Transcript is the text recognized for one turn. Text is never blank.
type Transcript struct {
	Turn int64
	Text string

	ticket *Ticket
}

// ReplyKind tags the Reply variant.
type ReplyKind int

const (
	// ReplyComplete carries a whole reply (batch mode).
	ReplyComplete ReplyKind = iota
	// ReplyFragment carries the next piece of a streamed reply.
	ReplyFragment
	// ReplyEnd terminates a streamed reply.
	ReplyEnd
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyComplete:
		return "complete"
	case ReplyFragment:
		return "fragment"
	case ReplyEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Reply is the tagged variant handed from dialogue to synthesis.
type Reply struct {
	Kind ReplyKind
	Turn int64
	Text string
	// Aborted marks a ReplyEnd sent after the stream failed; buffered text
	// is discarded instead of spoken.
	Aborted bool

	ticket *Ticket
}

// AudioChunk is a piece of synthesized PCM at the sink's rate. A chunk with
// End set carries no audio and closes its reply.
type AudioChunk struct {
	Turn int64
	Data []byte
	End  bool

	ticket *Ticket
}
