// Package highway implements a feed-forward classifier built from stacked
// highway blocks, with mini-batch training and batched inference.
package highway

import (
	"errors"
	"fmt"
	"time"

	"hwnet/session"
	"hwnet/utils"
)

// Classifier binds a built graph to the session it runs in. It is not safe
// for concurrent use.
type Classifier struct {
	sess  *session.Session
	cfg   Config
	graph *Graph
}

// New builds the graph for cfg and initializes its variables through sess.
func New(sess *session.Session, cfg Config) (*Classifier, error) {
	if sess == nil {
		return nil, errors.New("highway: nil session")
	}
	if err := sess.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	g, err := Build(cfg, sess.Rand())
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	if err := sess.Initialize(g.Registry()); err != nil {
		return nil, err
	}
	g.stats.ModelInitTime += time.Since(start)
	return &Classifier{sess: sess, cfg: cfg, graph: g}, nil
}

func (c *Classifier) Config() Config { return c.cfg }

func (c *Classifier) Graph() *Graph { return c.graph }

// Stats returns the accumulated timings of every pass run so far.
func (c *Classifier) Stats() utils.TimingStats { return c.graph.Stats() }

// NumParams counts the trainable scalars.
func (c *Classifier) NumParams() int { return c.graph.Registry().NumElements() }
