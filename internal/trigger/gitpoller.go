package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/docsflow/internal/logfields"
)

// EmitFunc receives events synthesized by the poller.
type EmitFunc func(Event)

// refLister abstracts the ls-remote call so tests can run without a network.
type refLister interface {
	List(ctx context.Context) (map[string]plumbing.Hash, error)
}

// GitPoller watches a remote repository with lightweight ls-remote sweeps and
// synthesizes push/tag events when branch or tag refs move. It is the daemon's
// event source when no webhook delivery is available.
type GitPoller struct {
	repository string
	lister     refLister
	emit       EmitFunc

	mu     sync.Mutex
	known  map[string]plumbing.Hash
	primed bool
}

// NewGitPoller creates a poller for the given remote URL. The repository
// identity (owner/name) is attached to every synthesized event.
func NewGitPoller(url, repository string, emit EmitFunc) *GitPoller {
	return &GitPoller{
		repository: repository,
		lister:     &remoteLister{url: url},
		emit:       emit,
		known:      make(map[string]plumbing.Hash),
	}
}

// Poll performs one ls-remote sweep and emits events for refs that appeared
// or moved since the previous sweep. The first sweep only primes the
// baseline; historical refs do not trigger retroactive runs.
func (p *GitPoller) Poll(ctx context.Context) error {
	refs, err := p.lister.List(ctx)
	if err != nil {
		return fmt.Errorf("ls-remote: %w", err)
	}

	p.mu.Lock()
	events := p.diffLocked(refs)
	p.mu.Unlock()

	for _, ev := range events {
		slog.Debug("Git poller observed ref change",
			logfields.EventKind(string(ev.Kind)),
			logfields.Ref(ev.Ref),
			logfields.Repository(ev.Repository))
		p.emit(ev)
	}
	return nil
}

// diffLocked computes events for changed refs and updates the baseline.
// Caller holds p.mu.
func (p *GitPoller) diffLocked(refs map[string]plumbing.Hash) []Event {
	now := time.Now()
	var events []Event

	if p.primed {
		for name, hash := range refs {
			kind, short, ok := classifyRef(name)
			if !ok {
				continue
			}
			if prev, seen := p.known[name]; !seen || prev != hash {
				events = append(events, Event{
					Kind:       kind,
					Ref:        short,
					Repository: p.repository,
					Time:       now,
				})
			}
		}
	}

	p.known = refs
	p.primed = true
	return events
}

// classifyRef maps a full ref name to an event kind and short name.
func classifyRef(name string) (EventKind, string, bool) {
	switch {
	case strings.HasPrefix(name, "refs/heads/"):
		return EventPush, strings.TrimPrefix(name, "refs/heads/"), true
	case strings.HasPrefix(name, "refs/tags/"):
		return EventTag, strings.TrimPrefix(name, "refs/tags/"), true
	default:
		return "", "", false
	}
}

// remoteLister performs the actual ls-remote against a configured URL.
type remoteLister struct {
	url string
}

func (r *remoteLister) List(ctx context.Context) (map[string]plumbing.Hash, error) {
	rem := git.NewRemote(nil, &ggitcfg.RemoteConfig{
		Name: "origin",
		URLs: []string{r.url},
	})
	refs, err := rem.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]plumbing.Hash, len(refs))
	for _, ref := range refs {
		out[ref.Name().String()] = ref.Hash()
	}
	return out, nil
}
