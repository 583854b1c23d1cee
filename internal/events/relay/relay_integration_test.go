//go:build integration

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"aidtrace/internal/events"
	"aidtrace/internal/events/outbox"
	"aidtrace/pkg/domain"
	"aidtrace/pkg/testutil/containers"
)

func TestRelayToRedpanda(t *testing.T) {
	pg := containers.GetManager().GetPostgres(t)
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, pg.TruncateTables(ctx, "outbox"))

	const topic = "aidtrace.relay.test"
	producer, err := kgo.NewClient(kgo.SeedBrokers(rp.Broker), kgo.AllowAutoTopicCreation())
	require.NoError(t, err)
	defer producer.Close()

	store := outbox.New(pg.DB)
	evt := events.New(ctx, events.AssetCreated, domain.AssetID("0xfeed"), domain.Identity("donor-1"), nil)
	require.NoError(t, store.Append(ctx, []events.Event{evt}))

	n, err := New(store, producer, topic).Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	var got []*kgo.Record
	fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	require.Len(t, got, 1)
	assert.Equal(t, "0xfeed", string(got[0].Key))
}
