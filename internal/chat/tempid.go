package chat

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// tempIDGen issues provisional ids for outgoing messages. The counter keeps
// ids unique across multiple sends within the same millisecond; the random
// suffix keeps them unique across process restarts. A temp id is never
// reused once issued.
type tempIDGen struct {
	counter atomic.Uint64
}

func (g *tempIDGen) next() string {
	seq := g.counter.Add(1)
	return fmt.Sprintf("t_%d_%d_%s", time.Now().UnixMilli(), seq, uuid.NewString()[:8])
}
