// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package chain

import (
	"context"
	"fmt"
)

// NewTreeChain returns a chain over a fixed list of files. It opens the
// first usable file right away.
func NewTreeChain(ctx context.Context, cfg Config, files []string) (*Chain, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: cannot build chain for %q", ErrNoFiles, cfg.Name)
	}
	return newChain(ctx, cfg, &listFiles{files: append([]string(nil), files...)}, "chain")
}

// NewTreeQueue returns a chain fed by a channel. A closed channel or an
// empty name ends the queue. Files taken from the channel are remembered
// and replayed first after a reset, so one queue can be iterated more than
// once.
func NewTreeQueue(ctx context.Context, cfg Config, files <-chan string) (*Chain, error) {
	return newChain(ctx, cfg, &queueFiles{ch: files}, "queue")
}

// Len is the number of files in a TreeChain. For a TreeQueue it is only
// the number of names waiting in the channel buffer.
func (c *Chain) Len() int {
	n, known := c.files.len()
	if !known {
		c.logger.Warn().Msg("length of a queue is not reliable")
	}
	return n
}

type listFiles struct {
	files []string
	pos   int
}

func (l *listFiles) next(context.Context) (string, bool, error) {
	if l.pos >= len(l.files) {
		return "", false, nil
	}
	name := l.files[l.pos]
	l.pos++
	return name, true, nil
}

func (l *listFiles) reset() { l.pos = 0 }

func (l *listFiles) remaining() (int, bool) { return len(l.files) - l.pos, true }

func (l *listFiles) len() (int, bool) { return len(l.files), true }

type queueFiles struct {
	ch      <-chan string
	seen    []string
	pos     int
	drained bool
}

func (q *queueFiles) next(ctx context.Context) (string, bool, error) {
	if q.pos < len(q.seen) {
		name := q.seen[q.pos]
		q.pos++
		return name, true, nil
	}
	if q.drained {
		return "", false, nil
	}
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case name, ok := <-q.ch:
		if !ok || name == "" {
			q.drained = true
			return "", false, nil
		}
		q.seen = append(q.seen, name)
		q.pos++
		return name, true, nil
	}
}

func (q *queueFiles) reset() { q.pos = 0 }

func (q *queueFiles) remaining() (int, bool) { return 0, false }

func (q *queueFiles) len() (int, bool) { return len(q.ch), false }
