package natsbridge_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/heritagestreams/errors"
	"github.com/c360/heritagestreams/metric"
	"github.com/c360/heritagestreams/natsbridge"
	"github.com/c360/heritagestreams/protocol"
	"github.com/c360/heritagestreams/relay"
	"github.com/c360/heritagestreams/testutil"
)

func connectedPool(t *testing.T, relays ...*testutil.Relay) *relay.Pool {
	t.Helper()
	urls := make([]string, 0, len(relays))
	for _, r := range relays {
		urls = append(urls, r.URL())
	}
	pool, err := relay.NewPool(urls)
	require.NoError(t, err)
	t.Cleanup(pool.DisconnectAll)
	status := pool.ConnectAll(context.Background())
	require.Equal(t, len(relays), status.Connected)
	return pool
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}

func TestBridge_PublishesLiveEventsOnce(t *testing.T) {
	r1 := testutil.NewRelay(t)
	r2 := testutil.NewRelay(t)
	pool := connectedPool(t, r1, r2)

	registry := metric.NewMetricsRegistry()
	pub := testutil.NewMockPublisher()
	bridge, err := natsbridge.New(pool, pub,
		natsbridge.WithSubjectPrefix("test.events."),
		natsbridge.WithKinds(protocol.KindNote, protocol.KindLabel),
		natsbridge.WithMetrics(registry))
	require.NoError(t, err)

	require.NoError(t, bridge.Start())
	waitFor(t, func() bool { return r1.ReqCount() == 1 && r2.ReqCount() == 1 })

	signer := testutil.NewSigner(t)
	now := time.Now().Unix() + 5
	note := signer.Event(protocol.KindNote, now, "kia ora")
	reaction := signer.Event(protocol.KindReaction, now, "+")

	r1.Publish(note, reaction)
	r2.Publish(note)

	subject := bridge.Subject(protocol.KindNote)
	assert.Equal(t, "test.events.kind.1", subject)
	testutil.WaitForMessageCount(t, pub, subject, 1, 5*time.Second)

	// Give the duplicate from the second relay time to arrive.
	time.Sleep(100 * time.Millisecond)
	msgs := pub.GetMessages(subject)
	require.Len(t, msgs, 1)

	var got protocol.Event
	require.NoError(t, json.Unmarshal(msgs[0], &got))
	assert.Equal(t, note.ID, got.ID)
	assert.Equal(t, "kia ora", got.Content)
	assert.Equal(t, 0, pub.GetMessageCount(bridge.Subject(protocol.KindReaction)))

	assert.Equal(t, 1.0, promtest.ToFloat64(registry.CoreMetrics().LivePublished.WithLabelValues("1")))

	require.NoError(t, bridge.Stop())
	waitFor(t, func() bool { return r1.CloseCount() == 1 && r2.CloseCount() == 1 })
}

func TestBridge_OldEventsNotBridged(t *testing.T) {
	signer := testutil.NewSigner(t)
	old := signer.Event(protocol.KindNote, time.Now().Add(-time.Hour).Unix(), "stored")
	r := testutil.NewRelay(t, testutil.WithEvents(old))
	pool := connectedPool(t, r)

	pub := testutil.NewMockPublisher()
	bridge, err := natsbridge.New(pool, pub)
	require.NoError(t, err)
	require.NoError(t, bridge.Start())
	t.Cleanup(func() { _ = bridge.Stop() })

	waitFor(t, func() bool { return r.ReqCount() == 1 })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, pub.GetMessageCount(bridge.Subject(protocol.KindNote)))
}

func TestBridge_IgnoresEventsFromOtherSubscriptions(t *testing.T) {
	r := testutil.NewRelay(t)
	pool := connectedPool(t, r)

	pub := testutil.NewMockPublisher()
	bridge, err := natsbridge.New(pool, pub)
	require.NoError(t, err)
	require.NoError(t, bridge.Start())
	t.Cleanup(func() { _ = bridge.Stop() })
	waitFor(t, func() bool { return r.ReqCount() == 1 })

	signer := testutil.NewSigner(t)
	stale := signer.Event(protocol.KindNote, time.Now().Add(-24*time.Hour).Unix(), "from a finished query")
	frame, err := json.Marshal([]any{"EVENT", "finishedquerysub", stale})
	require.NoError(t, err)
	r.SendRaw(string(frame))

	fresh := signer.Event(protocol.KindNote, time.Now().Unix()+5, "live")
	r.Publish(fresh)

	subject := bridge.Subject(protocol.KindNote)
	testutil.WaitForMessageCount(t, pub, subject, 1, 5*time.Second)
	time.Sleep(100 * time.Millisecond)

	msgs := pub.GetMessages(subject)
	require.Len(t, msgs, 1)
	var got protocol.Event
	require.NoError(t, json.Unmarshal(msgs[0], &got))
	assert.Equal(t, fresh.ID, got.ID)
}

func TestBridge_ConcurrentDuplicatesPublishedOnce(t *testing.T) {
	relays := []*testutil.Relay{testutil.NewRelay(t), testutil.NewRelay(t), testutil.NewRelay(t)}
	pool := connectedPool(t, relays...)

	pub := testutil.NewMockPublisher()
	bridge, err := natsbridge.New(pool, pub)
	require.NoError(t, err)
	require.NoError(t, bridge.Start())
	t.Cleanup(func() { _ = bridge.Stop() })
	waitFor(t, func() bool {
		for _, r := range relays {
			if r.ReqCount() != 1 {
				return false
			}
		}
		return true
	})

	signer := testutil.NewSigner(t)
	now := time.Now().Unix() + 5
	events := make([]*protocol.Event, 50)
	for i := range events {
		events[i] = signer.Event(protocol.KindNote, now, fmt.Sprintf("event %d", i))
	}

	var wg sync.WaitGroup
	for _, r := range relays {
		wg.Add(1)
		go func(r *testutil.Relay) {
			defer wg.Done()
			r.Publish(events...)
		}(r)
	}
	wg.Wait()

	subject := bridge.Subject(protocol.KindNote)
	testutil.WaitForMessageCount(t, pub, subject, len(events), 5*time.Second)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, len(events), pub.GetMessageCount(subject))
}

func TestBridge_PublishFailureIsContained(t *testing.T) {
	r := testutil.NewRelay(t)
	pool := connectedPool(t, r)

	registry := metric.NewMetricsRegistry()
	pub := testutil.NewMockPublisher()
	pub.FailWith(stderrors.New("nats down"))

	bridge, err := natsbridge.New(pool, pub, natsbridge.WithMetrics(registry))
	require.NoError(t, err)
	require.NoError(t, bridge.Start())
	t.Cleanup(func() { _ = bridge.Stop() })
	waitFor(t, func() bool { return r.ReqCount() == 1 })

	signer := testutil.NewSigner(t)
	r.Publish(signer.Event(protocol.KindNote, time.Now().Unix()+5, "lost"))

	errCounter := registry.CoreMetrics().ErrorsTotal.WithLabelValues("natsbridge", "transient")
	waitFor(t, func() bool { return promtest.ToFloat64(errCounter) == 1 })
	assert.Equal(t, 1, pool.Status().Connected)
}

func TestBridge_Lifecycle(t *testing.T) {
	_, err := natsbridge.New(nil, nil)
	require.Error(t, err)

	r := testutil.NewRelay(t)
	pool := connectedPool(t, r)
	bridge, err := natsbridge.New(pool, testutil.NewMockPublisher())
	require.NoError(t, err)

	err = bridge.Stop()
	assert.ErrorIs(t, err, errors.ErrNotStarted)

	require.NoError(t, bridge.Start())
	assert.ErrorIs(t, bridge.Start(), errors.ErrAlreadyStarted)
	require.NoError(t, bridge.Stop())

	pool.DisconnectAll()
	err = bridge.Start()
	assert.ErrorIs(t, err, errors.ErrAllRelaysUnreachable)
	assert.Equal(t, natsbridge.DefaultSubjectPrefix+".kind.7", bridge.Subject(protocol.KindReaction))
}

type blockingPublisher struct {
	release chan struct{}
}

func (p *blockingPublisher) Publish(string, []byte) error {
	<-p.release
	return nil
}

func TestBridge_FullQueueDropsEvents(t *testing.T) {
	r := testutil.NewRelay(t)
	pool := connectedPool(t, r)

	registry := metric.NewMetricsRegistry()
	pub := &blockingPublisher{release: make(chan struct{})}
	bridge, err := natsbridge.New(pool, pub,
		natsbridge.WithMetrics(registry),
		natsbridge.WithQueueSize(1),
		natsbridge.WithStopTimeout(time.Second))
	require.NoError(t, err)
	require.NoError(t, bridge.Start())
	waitFor(t, func() bool { return r.ReqCount() == 1 })

	signer := testutil.NewSigner(t)
	now := time.Now().Unix() + 5
	r.Publish(
		signer.Event(protocol.KindNote, now, "one"),
		signer.Event(protocol.KindNote, now, "two"),
		signer.Event(protocol.KindNote, now, "three"))

	errCounter := registry.CoreMetrics().ErrorsTotal.WithLabelValues("natsbridge", "transient")
	waitFor(t, func() bool { return promtest.ToFloat64(errCounter) >= 1 })
	// Let the remaining events reach the queue.
	time.Sleep(100 * time.Millisecond)

	close(pub.release)
	require.NoError(t, bridge.Stop())
	published := promtest.ToFloat64(registry.CoreMetrics().LivePublished.WithLabelValues("1"))
	assert.Equal(t, 3.0, published+promtest.ToFloat64(errCounter))
}
