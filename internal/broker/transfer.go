package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/switchd/internal/queue"
	"github.com/dantte-lp/switchd/internal/trace"
)

// errWake is the sentinel errgroup.Go functions return to signal "data
// became available", distinguishing a successful wake from the queue
// being deleted or the race simply timing out.
var errWake = errors.New("broker: queue woke")

// dispatchTransfer implements §4.7: combine Queue.PeekAfter(cursor) over
// every requested queue with a bounded wait and multi-queue wake-up,
// looping until data appears, the deadline elapses, or a queue is deleted.
func (b *Broker) dispatchTransfer(ctx context.Context, session string, req TransferReq) (ResponseBody, error) {
	start := b.clock.Now()
	cursor := int64(-1)
	if req.From != nil {
		cursor = *req.From
	}
	deadline := start.Add(req.Timeout)

	queues := make([]*queue.Queue, 0, len(req.Queues))
	for _, name := range req.Queues {
		q, ok := b.Directory.Find(name)
		if !ok {
			continue
		}
		q.SetNextTransferExpected(deadline)
		queues = append(queues, q)
	}

	for {
		batch := collectBatch(queues, cursor)
		if len(batch) > 0 {
			b.traceTransferResult(session, batch)
			return TransferResp{Messages: batch, Next: nextCursor(batch, cursor)}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return TransferResp{Messages: nil, Next: nextCursor(nil, cursor)}, nil
		}

		deletedQueue, err := waitAny(ctx, queues, remaining)
		if err != nil {
			return nil, &QueueDeletedError{Queue: deletedQueue}
		}
		// either a queue woke (re-peek below) or the race timed out
		// (next loop's remaining<=0 check returns the empty result).
	}
}

// collectBatch unions PeekAfter(cursor) across queues in request order,
// preserving per-queue contiguity with no cross-queue ordering guarantee.
func collectBatch(queues []*queue.Queue, cursor int64) []queue.Item {
	var out []queue.Item
	for _, q := range queues {
		out = append(out, q.PeekAfter(cursor)...)
	}
	return out
}

// waitAny races Queue.Wait across every queue against a timer of timeout,
// using errgroup to cancel the losers as soon as the first one resolves.
// Returns a non-nil error (QueueDeletedError's queue name) only if a queue
// was deleted; a plain timeout is reported as a nil error so the caller's
// loop re-checks its own deadline.
func waitAny(parent context.Context, queues []*queue.Queue, timeout time.Duration) (deletedQueue string, err error) {
	if len(queues) == 0 {
		// Nothing to wait on: behave like a timer-only wait.
		select {
		case <-time.After(timeout):
		case <-parent.Done():
		}
		return "", nil
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var deleted string

	for _, q := range queues {
		q := q
		g.Go(func() error {
			werr := q.Wait(gctx)
			switch {
			case werr == nil:
				return errWake
			case errors.Is(werr, queue.ErrDeleted):
				mu.Lock()
				deleted = q.Name()
				mu.Unlock()
				return queue.ErrDeleted
			default:
				return nil // context cancelled/timed out: not a group error
			}
		})
	}

	gerr := g.Wait()
	switch {
	case errors.Is(gerr, queue.ErrDeleted):
		return deleted, queue.ErrDeleted
	default:
		return "", nil
	}
}

// traceTransferResult appends one Message event per delivered item, per
// §4.7's trace-emission rule: processing_time is populated only for a
// Response whose correlated Request entry is still findable.
func (b *Broker) traceTransferResult(session string, batch []queue.Item) {
	for _, item := range batch {
		ev := trace.Event{
			Time:      b.clock.Now(),
			Output:    session,
			Queue:     item.ID.Queue,
			Kind:      trace.KindMessage,
			MessageID: item.ID,
			Message:   item.Entry.Message,
		}

		if item.Entry.Message.Kind == queue.KindResponse {
			correlates := item.Entry.Message.Correlates
			if rq, ok := b.Directory.Find(correlates.Queue); ok {
				if reqEntry, ok := rq.Find(correlates.Index); ok {
					pt := item.Entry.EnqueuedAt.Sub(reqEntry.EnqueuedAt)
					ev.ProcessingTime = &pt
				}
			}
		}

		b.Trace.Append(ev)
	}
}
