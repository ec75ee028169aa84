package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxcore/inboxcore/internal/autoreply"
	"github.com/inboxcore/inboxcore/internal/cache"
	"github.com/inboxcore/inboxcore/internal/config"
	"github.com/inboxcore/inboxcore/internal/engine"
	"github.com/inboxcore/inboxcore/internal/mail"
	"github.com/inboxcore/inboxcore/internal/page"
	"github.com/inboxcore/inboxcore/internal/profile"
	"github.com/inboxcore/inboxcore/internal/thread"
)

type remoteMock struct {
	mu        sync.Mutex
	listCalls int

	ListMessagesFunc func(ctx context.Context, query string, maxResults int64, pageToken string) (*mail.ListPage, error)
	GetThreadFunc    func(ctx context.Context, threadID string) ([]mail.Message, error)
	ListLabelsFunc   func(ctx context.Context) ([]mail.Label, error)

	setReadErr error
	trashed    []string
}

func (r *remoteMock) ListMessages(ctx context.Context, query string, maxResults int64, pageToken string) (*mail.ListPage, error) {
	r.mu.Lock()
	r.listCalls++
	r.mu.Unlock()
	return r.ListMessagesFunc(ctx, query, maxResults, pageToken)
}

func (r *remoteMock) GetMessage(_ context.Context, id string) (mail.Message, error) {
	return mail.Message{ID: id}, nil
}

func (r *remoteMock) GetThread(ctx context.Context, threadID string) ([]mail.Message, error) {
	return r.GetThreadFunc(ctx, threadID)
}

func (r *remoteMock) ModifyLabels(context.Context, string, []string, []string) error { return nil }

func (r *remoteMock) SetReadState(_ context.Context, id string, _ bool) error { return r.setReadErr }

func (r *remoteMock) SetStarred(context.Context, string, bool) error { return nil }

func (r *remoteMock) Trash(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trashed = append(r.trashed, id)
	return nil
}

func (r *remoteMock) GetAttachment(context.Context, string, string) ([]byte, error) {
	return nil, nil
}

func (r *remoteMock) ListLabels(ctx context.Context) ([]mail.Label, error) {
	if r.ListLabelsFunc == nil {
		return nil, nil
	}
	return r.ListLabelsFunc(ctx)
}

func (r *remoteMock) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

type replySenderMock struct {
	mu   sync.Mutex
	sent []string
}

func (s *replySenderMock) SendReply(_ context.Context, to mail.Address, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to.Email)
	return nil
}

func (s *replySenderMock) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fixture struct {
	engine   *engine.Engine
	remote   *remoteMock
	identity *profile.Store
	memory   *cache.Memory
	sender   *replySenderMock
}

func newFixture(t *testing.T, remote *remoteMock) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()

	identity := profile.NewStore("profile-a",
		profile.Profile{ID: "profile-a", Name: "David", Email: "david@corp.example", OutOfOffice: true},
		profile.Profile{ID: "profile-b", Name: "Anna", Email: "anna@corp.example"},
	)

	memory := cache.NewMemory()
	composite := cache.NewComposite(memory, nil, cfg.CacheTTL, log)

	sender := &replySenderMock{}
	guard := autoreply.NewGuard(sender, identity, cfg.InternalAddresses, cfg.AutomatedSenderPatterns, log)

	pipeline := thread.NewPipeline(thread.Options{
		HeaderKeywords:          cfg.QuoteHeaderKeywords,
		DOMSizeLimit:            cfg.QuoteDOMSizeLimit,
		AttachmentMinSize:       cfg.AttachmentMinSize,
		AttachmentNoisePatterns: cfg.AttachmentNoisePatterns,
	}, log)

	eng := engine.New(remote, composite, page.NewTracker(), guard, pipeline, identity, cfg, log)
	identity.OnSwitch(eng.SwitchProfile)
	identity.OnOutOfOfficeChange(eng.ResetAutoReply)

	return &fixture{engine: eng, remote: remote, identity: identity, memory: memory, sender: sender}
}

func listPageOf(msgs ...mail.Message) *mail.ListPage {
	return &mail.ListPage{Messages: msgs, ResultSizeEstimate: int64(len(msgs))}
}

func inboxMsg(id, threadID, from string, unread bool) mail.Message {
	labels := []string{mail.LabelInbox}
	if unread {
		labels = append(labels, mail.LabelUnread)
	}
	return mail.Message{
		ID:       id,
		ThreadID: threadID,
		From:     mail.Address{Email: from},
		Subject:  "subject " + id,
		Body:     "<p>body of message " + id + " with enough text to keep</p>",
		Date:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Unread:   unread,
		LabelIDs: labels,
	}
}

func TestFetchListCachesFreshFetch(t *testing.T) {
	remote := &remoteMock{
		ListMessagesFunc: func(context.Context, string, int64, string) (*mail.ListPage, error) {
			return listPageOf(inboxMsg("m1", "t1", "x@y.com", false)), nil
		},
	}
	f := newFixture(t, remote)
	ctx := context.Background()

	first, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, 1, remote.calls())

	// Tab-switch navigation reuse: second read is served from cache.
	second, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.Items, second.Items)
	assert.Equal(t, 1, remote.calls(), "cached read must not hit the remote")
}

func TestFetchListForceRefreshBypassesCacheRead(t *testing.T) {
	remote := &remoteMock{
		ListMessagesFunc: func(context.Context, string, int64, string) (*mail.ListPage, error) {
			return listPageOf(inboxMsg("m1", "t1", "x@y.com", false)), nil
		},
	}
	f := newFixture(t, remote)
	ctx := context.Background()

	_, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	_, err = f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, 2, remote.calls())
}

func TestFetchListPaginatedNotPersisted(t *testing.T) {
	remote := &remoteMock{
		ListMessagesFunc: func(_ context.Context, _ string, _ int64, pageToken string) (*mail.ListPage, error) {
			if pageToken == "" {
				p := listPageOf(inboxMsg("m1", "t1", "x@y.com", false))
				p.NextPageToken = "cursor-1"
				return p, nil
			}
			return listPageOf(inboxMsg("m2", "t2", "x@y.com", false)), nil
		},
	}
	f := newFixture(t, remote)
	ctx := context.Background()

	first, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cursor-1", first.NextPageToken)

	more, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, more.Items, 1)
	assert.Equal(t, "m2", more.Items[0].ID)

	// The cached list entry still holds only the first page.
	cached, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, cached.Items, 1)
	assert.Equal(t, "m1", cached.Items[0].ID)
}

func TestFetchListTransientFailureReturnsEmpty(t *testing.T) {
	remote := &remoteMock{
		ListMessagesFunc: func(context.Context, string, int64, string) (*mail.ListPage, error) {
			return nil, errors.New("503 backend error")
		},
	}
	f := newFixture(t, remote)

	got, err := f.engine.FetchList(context.Background(), "in:inbox", engine.FetchOptions{})
	require.NoError(t, err, "transient failures must not propagate")
	assert.Empty(t, got.Items)
}

func TestFetchListDiscardsStaleProfileResult(t *testing.T) {
	var f *fixture
	remote := &remoteMock{
		ListMessagesFunc: func(context.Context, string, int64, string) (*mail.ListPage, error) {
			// Switch completes while the fetch is in flight.
			f.identity.Switch("profile-b")
			return listPageOf(inboxMsg("m1", "t1", "x@y.com", false)), nil
		},
	}
	f = newFixture(t, remote)

	got, err := f.engine.FetchList(context.Background(), "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, got.Items, "stale-profile result must be discarded")

	// Nothing may have been written for either profile.
	_, err = f.engine.FetchList(context.Background(), "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, remote.calls(), "no cache entry should have survived the switch")
}

func TestFetchListTriggersAutoReplyOncePerSender(t *testing.T) {
	batch := make([]mail.Message, 0, 5)
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		batch = append(batch, inboxMsg(id, "t-"+id, "x@y.com", true))
	}
	remote := &remoteMock{
		ListMessagesFunc: func(context.Context, string, int64, string) (*mail.ListPage, error) {
			return listPageOf(batch...), nil
		},
	}
	f := newFixture(t, remote)

	_, err := f.engine.FetchList(context.Background(), "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.sender.count(), "five unread messages from one sender get one reply")
}

func TestFetchListPaginatedSkipsAutoReply(t *testing.T) {
	remote := &remoteMock{
		ListMessagesFunc: func(_ context.Context, _ string, _ int64, pageToken string) (*mail.ListPage, error) {
			if pageToken == "" {
				p := listPageOf(inboxMsg("m1", "t1", "first@y.com", true))
				p.NextPageToken = "cursor-1"
				return p, nil
			}
			return listPageOf(inboxMsg("m2", "t2", "second@y.com", true)), nil
		},
	}
	f := newFixture(t, remote)
	ctx := context.Background()

	first, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, f.sender.count())

	_, err = f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{PageToken: first.NextPageToken})
	require.NoError(t, err)
	assert.Equal(t, 1, f.sender.count(), "load-more pages are not a fresh inbox fetch")
	assert.Equal(t, []string{"first@y.com"}, f.sender.sent)
}

func TestFetchListRejectsCursorAcrossProfiles(t *testing.T) {
	var mu sync.Mutex
	var tokens []string
	remote := &remoteMock{
		ListMessagesFunc: func(_ context.Context, _ string, _ int64, pageToken string) (*mail.ListPage, error) {
			mu.Lock()
			tokens = append(tokens, pageToken)
			mu.Unlock()
			p := listPageOf(inboxMsg("m1", "t1", "x@y.com", false))
			p.NextPageToken = "cursor-a"
			return p, nil
		},
	}
	f := newFixture(t, remote)
	ctx := context.Background()

	first, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, "cursor-a", first.NextPageToken)

	f.identity.Switch("profile-b")

	// A cursor minted under the previous profile must never reach the
	// remote; the request falls back to a first-page fetch.
	_, err = f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{PageToken: first.NextPageToken})
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, tokens)
}

func TestOpenThreadBuildsConversation(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	remote := &remoteMock{
		GetThreadFunc: func(_ context.Context, threadID string) ([]mail.Message, error) {
			old := inboxMsg("m1", threadID, "x@y.com", false)
			old.Date = base
			newer := inboxMsg("m2", threadID, "z@y.com", false)
			newer.Date = base.Add(time.Hour)
			return []mail.Message{old, newer}, nil
		},
	}
	f := newFixture(t, remote)

	conv, err := f.engine.OpenThread(context.Background(), "t-9")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "m2", conv.Messages[0].ID, "newest first")
	assert.NotEmpty(t, conv.Messages[0].Preview)
}

func TestLabelTreeFromObservedThreads(t *testing.T) {
	msgs := []mail.Message{
		inboxMsg("m1", "t1", "a@y.com", false),
		inboxMsg("m2", "t2", "b@y.com", false),
		inboxMsg("m3", "t2", "c@y.com", false), // same thread, must not double count
	}
	for i := range msgs {
		msgs[i].LabelIDs = append(msgs[i].LabelIDs, "l-work")
	}
	remote := &remoteMock{
		ListMessagesFunc: func(context.Context, string, int64, string) (*mail.ListPage, error) {
			return listPageOf(msgs...), nil
		},
		ListLabelsFunc: func(context.Context) ([]mail.Label, error) {
			return []mail.Label{
				{ID: "l-work", Name: "Work", Type: "user"},
				{ID: "INBOX", Name: "INBOX", Type: "system"},
			}, nil
		},
	}
	f := newFixture(t, remote)

	_, err := f.engine.FetchList(context.Background(), "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)

	roots, err := f.engine.LabelTree(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, roots, 1, "system labels are excluded")
	assert.Equal(t, "Work", roots[0].Name)
	assert.Equal(t, 2, roots[0].Count, "counting is per thread, not per message")
}

func TestMutationRemoteFirst(t *testing.T) {
	remote := &remoteMock{
		ListMessagesFunc: func(context.Context, string, int64, string) (*mail.ListPage, error) {
			return listPageOf(inboxMsg("m1", "t1", "x@y.com", true)), nil
		},
		setReadErr: errors.New("network down"),
	}
	f := newFixture(t, remote)
	ctx := context.Background()

	_, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)

	// Remote failure surfaces and leaves the cache untouched.
	require.Error(t, f.engine.MarkRead(ctx, "m1", true))
	_, err = f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, remote.calls(), "failed mutation must not invalidate the list")

	// Remote success invalidates the cached list.
	remote.setReadErr = nil
	require.NoError(t, f.engine.MarkRead(ctx, "m1", true))
	_, err = f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, remote.calls(), "successful mutation forces a refetch")
}

func TestMutationFoldsIntoCachedThread(t *testing.T) {
	var threadCalls int
	remote := &remoteMock{
		GetThreadFunc: func(_ context.Context, threadID string) ([]mail.Message, error) {
			threadCalls++
			return []mail.Message{inboxMsg("m1", threadID, "x@y.com", true)}, nil
		},
	}
	f := newFixture(t, remote)
	ctx := context.Background()

	first, err := f.engine.OpenThread(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, first.Messages, 1)
	require.True(t, first.Messages[0].Unread)

	require.NoError(t, f.engine.MarkRead(ctx, "m1", true))

	// The confirmed flip is visible from the cached thread without a
	// refetch.
	second, err := f.engine.OpenThread(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, second.Messages, 1)
	assert.False(t, second.Messages[0].Unread)
	assert.Equal(t, 1, threadCalls)
}

func TestSwitchProfileInvalidatesEverything(t *testing.T) {
	remote := &remoteMock{
		ListMessagesFunc: func(context.Context, string, int64, string) (*mail.ListPage, error) {
			return listPageOf(inboxMsg("m1", "t1", "x@y.com", true)), nil
		},
	}
	f := newFixture(t, remote)
	ctx := context.Background()

	_, err := f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, f.sender.count())

	f.identity.Switch("profile-b")

	// Cache gone: the same query hits the remote again.
	_, err = f.engine.FetchList(ctx, "in:inbox", engine.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, remote.calls())

	// Guard gone: the same sender can be replied to again.
	assert.Equal(t, 2, f.sender.count())
}
