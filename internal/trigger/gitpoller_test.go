package trigger

import (
	"context"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	refs map[string]plumbing.Hash
	err  error
}

func (f *fakeLister) List(_ context.Context) (map[string]plumbing.Hash, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]plumbing.Hash, len(f.refs))
	for k, v := range f.refs {
		out[k] = v
	}
	return out, nil
}

func hash(s string) plumbing.Hash {
	return plumbing.ComputeHash(plumbing.BlobObject, []byte(s))
}

func newTestPoller(lister *fakeLister) (*GitPoller, *[]Event) {
	var events []Event
	p := &GitPoller{
		repository: "ansible-collections/community.aws",
		lister:     lister,
		emit:       func(ev Event) { events = append(events, ev) },
		known:      make(map[string]plumbing.Hash),
	}
	return p, &events
}

func TestPollerFirstSweepPrimesOnly(t *testing.T) {
	lister := &fakeLister{refs: map[string]plumbing.Hash{
		"refs/heads/main":  hash("a"),
		"refs/tags/v1.0.0": hash("b"),
	}}
	p, events := newTestPoller(lister)

	require.NoError(t, p.Poll(context.Background()))
	require.Empty(t, *events, "baseline sweep must not replay history")
}

func TestPollerEmitsPushOnBranchMove(t *testing.T) {
	lister := &fakeLister{refs: map[string]plumbing.Hash{
		"refs/heads/main": hash("a"),
	}}
	p, events := newTestPoller(lister)
	require.NoError(t, p.Poll(context.Background()))

	lister.refs["refs/heads/main"] = hash("a2")
	require.NoError(t, p.Poll(context.Background()))

	require.Len(t, *events, 1)
	ev := (*events)[0]
	require.Equal(t, EventPush, ev.Kind)
	require.Equal(t, "main", ev.Ref)
	require.Equal(t, "ansible-collections/community.aws", ev.Repository)
}

func TestPollerEmitsTagOnNewTag(t *testing.T) {
	lister := &fakeLister{refs: map[string]plumbing.Hash{
		"refs/heads/main": hash("a"),
	}}
	p, events := newTestPoller(lister)
	require.NoError(t, p.Poll(context.Background()))

	lister.refs["refs/tags/v2.5.0"] = hash("t")
	require.NoError(t, p.Poll(context.Background()))

	require.Len(t, *events, 1)
	require.Equal(t, EventTag, (*events)[0].Kind)
	require.Equal(t, "v2.5.0", (*events)[0].Ref)
}

func TestPollerIgnoresNonBranchNonTagRefs(t *testing.T) {
	lister := &fakeLister{refs: map[string]plumbing.Hash{
		"refs/heads/main": hash("a"),
	}}
	p, events := newTestPoller(lister)
	require.NoError(t, p.Poll(context.Background()))

	lister.refs["refs/pull/42/head"] = hash("pr")
	require.NoError(t, p.Poll(context.Background()))

	require.Empty(t, *events)
}

func TestPollerUnchangedRefsAreQuiet(t *testing.T) {
	lister := &fakeLister{refs: map[string]plumbing.Hash{
		"refs/heads/main":     hash("a"),
		"refs/heads/stable-2": hash("s"),
	}}
	p, events := newTestPoller(lister)
	require.NoError(t, p.Poll(context.Background()))
	require.NoError(t, p.Poll(context.Background()))

	require.Empty(t, *events)
}
