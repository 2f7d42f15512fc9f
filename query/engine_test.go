package query_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/protocol"
	"github.com/c360/heritagestreams/query"
	"github.com/c360/heritagestreams/relay"
	"github.com/c360/heritagestreams/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// EngineSuite runs the engine against in-process relays.
type EngineSuite struct {
	suite.Suite
	signer *testutil.Signer
	clock  *fakeClock
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.signer = testutil.NewSigner(s.T())
	s.clock = &fakeClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *EngineSuite) connect(relays []*testutil.Relay, opts ...relay.Option) *relay.Pool {
	urls := make([]string, 0, len(relays))
	for _, r := range relays {
		urls = append(urls, r.URL())
	}
	opts = append(opts, relay.WithConnectTimeout(500*time.Millisecond))
	pool, err := relay.NewPool(urls, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(pool.DisconnectAll)
	pool.ConnectAll(context.Background())
	return pool
}

func (s *EngineSuite) engine(pool query.Pool, opts ...query.Option) *query.Engine {
	opts = append([]query.Option{
		query.WithRelayTimeout(time.Second),
		query.WithClock(s.clock.Now),
		query.WithMetrics(metric.NewMetricsRegistry()),
	}, opts...)
	engine, err := query.NewEngine(pool, opts...)
	s.Require().NoError(err)
	return engine
}

func (s *EngineSuite) note(createdAt int64, content string) *protocol.Event {
	return s.signer.Event(protocol.KindNote, createdAt, content)
}

func ids(events []*protocol.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

func totalReqs(relays ...*testutil.Relay) int {
	n := 0
	for _, r := range relays {
		n += r.ReqCount()
	}
	return n
}

func (s *EngineSuite) assertMerged(events []*protocol.Event) {
	seen := map[string]bool{}
	for i, ev := range events {
		s.False(seen[ev.ID], "duplicate id %s", ev.ID)
		seen[ev.ID] = true
		if i > 0 {
			s.GreaterOrEqual(events[i-1].CreatedAt, ev.CreatedAt, "results must be newest first")
		}
	}
}

func (s *EngineSuite) TestMergeDeduplicatesAndSorts() {
	a := s.note(100, "a")
	b := s.note(300, "b")
	c := s.note(200, "c")
	d := s.note(50, "d")

	r1 := testutil.NewRelay(s.T(), testutil.WithEvents(a, b))
	r2 := testutil.NewRelay(s.T(), testutil.WithEvents(b, c))
	r3 := testutil.NewRelay(s.T(), testutil.WithEvents(a, c, d))

	engine := s.engine(s.connect([]*testutil.Relay{r1, r2, r3}))
	events, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}})
	s.Require().NoError(err)

	s.Equal([]string{b.ID, c.ID, a.ID, d.ID}, ids(events))
}

func (s *EngineSuite) TestLimitAppliesToMergedResult() {
	var evs1, evs2 []*protocol.Event
	for i := 0; i < 6; i++ {
		evs1 = append(evs1, s.note(int64(1000+i*2), "even"))
		evs2 = append(evs2, s.note(int64(1001+i*2), "odd"))
	}
	r1 := testutil.NewRelay(s.T(), testutil.WithEvents(evs1...))
	r2 := testutil.NewRelay(s.T(), testutil.WithEvents(evs2...))

	engine := s.engine(s.connect([]*testutil.Relay{r1, r2}))
	events, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}, Limit: 4})
	s.Require().NoError(err)

	s.Require().Len(events, 4)
	s.Equal([]string{evs2[5].ID, evs1[5].ID, evs2[4].ID, evs1[4].ID}, ids(events))
}

func (s *EngineSuite) TestRandomDistributionKeepsInvariants() {
	rng := rand.New(rand.NewSource(7))
	relays := make([][]*protocol.Event, 4)
	for i := 0; i < 40; i++ {
		ev := s.note(int64(rng.Intn(20)), "x")
		for r := range relays {
			if rng.Intn(2) == 0 {
				relays[r] = append(relays[r], ev)
			}
		}
	}
	fakes := make([]*testutil.Relay, len(relays))
	for i, evs := range relays {
		fakes[i] = testutil.NewRelay(s.T(), testutil.WithEvents(evs...))
	}

	engine := s.engine(s.connect(fakes))
	events, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}})
	s.Require().NoError(err)
	s.assertMerged(events)

	union := map[string]bool{}
	for _, evs := range relays {
		for _, ev := range evs {
			union[ev.ID] = true
		}
	}
	s.Len(events, len(union))
}

func (s *EngineSuite) TestCacheHitIssuesNoRelayTraffic() {
	r1 := testutil.NewRelay(s.T(), testutil.WithEvents(s.note(1, "x")))
	r2 := testutil.NewRelay(s.T())
	engine := s.engine(s.connect([]*testutil.Relay{r1, r2}))

	opts := query.Options{Kinds: []int{protocol.KindCultureRecord}, Limit: 20}
	first, err := engine.Query(context.Background(), opts)
	s.Require().NoError(err)
	s.Equal(2, totalReqs(r1, r2))

	s.clock.Advance(time.Second)
	second, err := engine.Query(context.Background(), query.Options{Limit: 20, Kinds: []int{protocol.KindCultureRecord}})
	s.Require().NoError(err)
	s.Equal(2, totalReqs(r1, r2), "equivalent query within the ttl must be served from cache")
	s.Equal(ids(first), ids(second))
	s.Equal(int64(1), engine.CacheStats().Hits())
}

func (s *EngineSuite) TestCacheExpiry() {
	r := testutil.NewRelay(s.T(), testutil.WithEvents(s.note(1, "x")))
	engine := s.engine(s.connect([]*testutil.Relay{r}), query.WithCacheTTL(5*time.Minute))
	opts := query.Options{Kinds: []int{protocol.KindNote}}

	_, err := engine.Query(context.Background(), opts)
	s.Require().NoError(err)

	s.clock.Advance(5*time.Minute - time.Second)
	_, err = engine.Query(context.Background(), opts)
	s.Require().NoError(err)
	s.Equal(1, r.ReqCount())

	s.clock.Advance(time.Second)
	_, err = engine.Query(context.Background(), opts)
	s.Require().NoError(err)
	s.Equal(2, r.ReqCount(), "expired entries must trigger relay traffic")
}

func (s *EngineSuite) TestSkipCacheAndInvalidate() {
	r := testutil.NewRelay(s.T())
	engine := s.engine(s.connect([]*testutil.Relay{r}))
	opts := query.Options{Kinds: []int{protocol.KindNote}}

	_, err := engine.Query(context.Background(), opts)
	s.Require().NoError(err)

	opts.SkipCache = true
	_, err = engine.Query(context.Background(), opts)
	s.Require().NoError(err)
	s.Equal(2, r.ReqCount())

	opts.SkipCache = false
	engine.Invalidate()
	_, err = engine.Query(context.Background(), opts)
	s.Require().NoError(err)
	s.Equal(3, r.ReqCount())
}

func (s *EngineSuite) TestSubscriptionsAreClosed() {
	r := testutil.NewRelay(s.T())
	engine := s.engine(s.connect([]*testutil.Relay{r}))

	_, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}})
	s.Require().NoError(err)
	s.Eventually(func() bool { return r.CloseCount() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func (s *EngineSuite) TestTagFilter() {
	oceania := s.signer.Event(protocol.KindCultureRecord, 10, `{"name":"a"}`, testutil.Tag("l", "Oceania", "region"))
	europe := s.signer.Event(protocol.KindCultureRecord, 20, `{"name":"b"}`, testutil.Tag("l", "Europe", "region"))
	r := testutil.NewRelay(s.T(), testutil.WithEvents(oceania, europe))
	engine := s.engine(s.connect([]*testutil.Relay{r}))

	events, err := engine.Query(context.Background(), query.Options{
		Kinds: []int{protocol.KindCultureRecord},
		Tags:  map[string][]string{"l": {"Oceania"}},
	})
	s.Require().NoError(err)
	s.Equal([]string{oceania.ID}, ids(events))
}

func (s *EngineSuite) TestPartialFailure() {
	a := s.note(1, "a")
	b := s.note(2, "b")
	up1 := testutil.NewRelay(s.T(), testutil.WithEvents(a))
	up2 := testutil.NewRelay(s.T(), testutil.WithEvents(b))
	down := testutil.NewRelay(s.T(), testutil.WithRejectConnections())

	engine := s.engine(s.connect([]*testutil.Relay{up1, down, up2}))
	events, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}})
	s.Require().NoError(err)
	s.Equal([]string{b.ID, a.ID}, ids(events))
}

func (s *EngineSuite) TestAllRelaysDown() {
	down1 := testutil.NewRelay(s.T(), testutil.WithRejectConnections())
	down2 := testutil.NewRelay(s.T(), testutil.WithRejectConnections())

	engine := s.engine(s.connect([]*testutil.Relay{down1, down2}))
	events, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}})
	s.Require().Error(err)
	s.Nil(events)
	s.ErrorIs(err, errors.ErrAllRelaysUnreachable)
	s.True(errors.IsTransient(err))
}

func (s *EngineSuite) TestStalledRelayDoesNotHoldOthers() {
	a := s.note(10, "fast")
	stalled := s.note(20, "stalled but delivered")
	fast := testutil.NewRelay(s.T(), testutil.WithEvents(a))
	slow := testutil.NewRelay(s.T(), testutil.WithStall(), testutil.WithEvents(stalled))

	engine := s.engine(s.connect([]*testutil.Relay{fast, slow}), query.WithRelayTimeout(300*time.Millisecond))

	start := time.Now()
	events, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}})
	elapsed := time.Since(start)
	s.Require().NoError(err)

	s.Less(elapsed, 2*time.Second)
	s.GreaterOrEqual(elapsed, 300*time.Millisecond)
	s.Equal([]string{stalled.ID, a.ID}, ids(events), "events delivered before the timeout are kept")
}

func (s *EngineSuite) TestRelayDroppingMidQuery() {
	a := s.note(10, "a")
	ok := testutil.NewRelay(s.T(), testutil.WithEvents(a))
	flaky := testutil.NewRelay(s.T(), testutil.WithStall())
	pool := s.connect([]*testutil.Relay{ok, flaky})
	engine := s.engine(pool, query.WithRelayTimeout(3*time.Second))

	go func() {
		s.Eventually(func() bool { return flaky.ReqCount() == 1 }, 2*time.Second, 5*time.Millisecond)
		flaky.DropConnections()
	}()

	start := time.Now()
	events, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}})
	s.Require().NoError(err)
	s.Less(time.Since(start), 3*time.Second, "a lost connection ends its branch early")
	s.Equal([]string{a.ID}, ids(events))
}

func (s *EngineSuite) TestCanceledContext() {
	r := testutil.NewRelay(s.T(), testutil.WithStall())
	engine := s.engine(s.connect([]*testutil.Relay{r}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Query(ctx, query.Options{Kinds: []int{protocol.KindNote}})
	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)
}

// Five relays configured, three connect and two time out on connect; a
// kind 1 query with limit 10 returns deduplicated, newest-first events from
// the three that connected.
func (s *EngineSuite) TestScenario_FiveRelaysThreeConnect() {
	var all []*protocol.Event
	for i := 0; i < 12; i++ {
		all = append(all, s.note(int64(100+i), "note"))
	}
	r1 := testutil.NewRelay(s.T(), testutil.WithEvents(all[0:6]...))
	r2 := testutil.NewRelay(s.T(), testutil.WithEvents(all[4:10]...))
	r3 := testutil.NewRelay(s.T(), testutil.WithEvents(all[8:12]...))
	t1 := testutil.NewRelay(s.T(), testutil.WithHandshakeDelay(3*time.Second))
	t2 := testutil.NewRelay(s.T(), testutil.WithHandshakeDelay(3*time.Second))

	pool := s.connect([]*testutil.Relay{r1, t1, r2, t2, r3})
	status := pool.Status()
	s.Equal(3, status.Connected)
	s.Equal(5, status.Total)

	engine := s.engine(pool, query.WithRelayTimeout(5*time.Second))
	start := time.Now()
	events, err := engine.Query(context.Background(), query.Options{Kinds: []int{protocol.KindNote}, Limit: 10})
	s.Require().NoError(err)
	s.Less(time.Since(start), 5*time.Second)

	s.Len(events, 10)
	s.assertMerged(events)
	s.Equal(all[11].ID, events[0].ID)
	s.Equal(all[2].ID, events[9].ID)
	s.Zero(t1.ReqCount() + t2.ReqCount())
}
