package event

import (
	"sync"
)

// messagePool provides sync.Pool for inbound message decoding.
// Use this to reduce GC pressure on the bid path.
//
// Usage:
//
//	msg := AcquireMessage()
//	json.NewDecoder(r.Body).Decode(msg)
//	// ... dispatch ...
//	ReleaseMessage(msg)  // Return to pool after processing
var messagePool = sync.Pool{
	New: func() interface{} {
		return &Message{}
	},
}

// AcquireMessage gets a Message from the pool.
// The returned message has zero values.
func AcquireMessage() *Message {
	return messagePool.Get().(*Message)
}

// ReleaseMessage returns a Message to the pool.
// The message is reset to zero values before being pooled.
func ReleaseMessage(m *Message) {
	if m == nil {
		return
	}
	*m = Message{}
	messagePool.Put(m)
}

// Warmup pre-allocates messages to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 256

	msgs := make([]*Message, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		msgs = append(msgs, AcquireMessage())
	}
	for _, m := range msgs {
		ReleaseMessage(m)
	}
}
