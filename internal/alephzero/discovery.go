package alephzero

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Discovery watches the registry for paths matching a glob pattern and
// delivers the absolute path of every match, existing and future, exactly
// once, on a goroutine it owns.
type Discovery struct {
	rt      *Runtime
	pattern string

	mu      sync.Mutex
	cv      *sync.Cond
	pending []string
	seen    map[string]bool
	stopped bool

	done chan struct{}
	once sync.Once
}

// NewDiscovery starts watching for registry paths matching pattern (an
// absolute doublestar glob, e.g. "<root>/**/*.pubsub.a0").
func (r *Runtime) NewDiscovery(pattern string, cb func(abspath string)) (*Discovery, error) {
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
	}

	d := &Discovery{
		rt:      r,
		pattern: pattern,
		seen:    make(map[string]bool),
		done:    make(chan struct{}),
	}
	d.cv = sync.NewCond(&d.mu)

	// Snapshot existing paths and attach the watcher under the registry
	// lock so no creation slips between the two.
	r.mu.Lock()
	existing := make([]string, 0, len(r.topics))
	for path := range r.topics {
		existing = append(existing, filepath.Join(r.root, path))
	}
	sort.Strings(existing)
	for _, abspath := range existing {
		d.offer(abspath)
	}
	r.watchers = append(r.watchers, d)
	r.mu.Unlock()

	go d.run(cb)
	return d, nil
}

// offer enqueues a path if it matches the pattern and has not been emitted.
func (d *Discovery) offer(abspath string) {
	ok, err := doublestar.Match(filepath.ToSlash(d.pattern), filepath.ToSlash(abspath))
	if err != nil || !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.seen[abspath] {
		return
	}
	d.seen[abspath] = true
	d.pending = append(d.pending, abspath)
	d.cv.Broadcast()
}

// Close detaches the watcher and joins the delivery goroutine.
func (d *Discovery) Close() error {
	d.once.Do(func() {
		d.rt.mu.Lock()
		for i, w := range d.rt.watchers {
			if w == d {
				d.rt.watchers = append(d.rt.watchers[:i], d.rt.watchers[i+1:]...)
				break
			}
		}
		d.rt.mu.Unlock()

		d.mu.Lock()
		d.stopped = true
		d.cv.Broadcast()
		d.mu.Unlock()
	})
	<-d.done
	return nil
}

func (d *Discovery) run(cb func(string)) {
	defer close(d.done)
	for {
		d.mu.Lock()
		for !d.stopped && len(d.pending) == 0 {
			d.cv.Wait()
		}
		if d.stopped {
			d.mu.Unlock()
			return
		}
		abspath := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()

		cb(abspath)
	}
}
