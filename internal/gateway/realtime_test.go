package gateway_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/gateway"
)

func event(t *testing.T, table string, typ gateway.EventType, row map[string]interface{}) gateway.ChangeEvent {
	data, err := json.Marshal(row)
	require.NoError(t, err)
	return gateway.ChangeEvent{Table: table, Type: typ, New: data, CommitTimestamp: time.Now()}
}

func TestFilter_Matches(t *testing.T) {
	f := gateway.Filter{Table: "messages", Event: gateway.EventInsert, Column: "conversation_id", Value: "c1"}

	assert.True(t, f.Matches(event(t, "messages", gateway.EventInsert, map[string]interface{}{"conversation_id": "c1"})))
	assert.False(t, f.Matches(event(t, "messages", gateway.EventUpdate, map[string]interface{}{"conversation_id": "c1"})))
	assert.False(t, f.Matches(event(t, "messages", gateway.EventInsert, map[string]interface{}{"conversation_id": "c2"})))
	assert.False(t, f.Matches(event(t, "conversations", gateway.EventInsert, map[string]interface{}{"conversation_id": "c1"})))
	assert.False(t, f.Matches(event(t, "messages", gateway.EventInsert, map[string]interface{}{})))

	all := gateway.Filter{Table: "messages", Event: gateway.EventAll}
	assert.True(t, all.Matches(event(t, "messages", gateway.EventDelete, nil)))
	assert.Equal(t, "messages:INSERT:conversation_id=eq.c1", f.String())
}

type collector struct {
	mu     sync.Mutex
	events []gateway.ChangeEvent
}

func (c *collector) handle(ev gateway.ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestMemoryBroker_DeliversOncePerMatchingEvent(t *testing.T) {
	b := gateway.NewMemoryBroker(zap.NewNop())
	defer b.Close()
	ctx := context.Background()

	var c collector
	sub, err := b.Subscribe(ctx, gateway.Filter{Table: "messages", Event: gateway.EventInsert, Column: "conversation_id", Value: "c1"}, c.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, event(t, "messages", gateway.EventInsert, map[string]interface{}{"id": "m1", "conversation_id": "c1"})))
	require.NoError(t, b.Publish(ctx, event(t, "messages", gateway.EventInsert, map[string]interface{}{"id": "m2", "conversation_id": "c2"})))
	require.NoError(t, b.Publish(ctx, event(t, "messages", gateway.EventInsert, map[string]interface{}{"id": "m3", "conversation_id": "c1"})))

	assert.Eventually(t, func() bool { return c.len() == 2 }, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	var first map[string]interface{}
	require.NoError(t, c.events[0].Decode(&first))
	c.mu.Unlock()
	assert.Equal(t, "m1", first["id"], "events arrive in publish order")

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, b.Subscribers())

	require.NoError(t, b.Publish(ctx, event(t, "messages", gateway.EventInsert, map[string]interface{}{"conversation_id": "c1"})))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, c.len(), "no delivery after release")
}

func TestMemoryBroker_Closed(t *testing.T) {
	b := gateway.NewMemoryBroker(nil)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Subscribe(context.Background(), gateway.Filter{Table: "messages"}, func(gateway.ChangeEvent) {})
	assert.ErrorIs(t, err, gateway.ErrBrokerClosed)
	assert.ErrorIs(t, b.Publish(context.Background(), gateway.ChangeEvent{Table: "messages"}), gateway.ErrBrokerClosed)
}

func TestNilSubscription_Unsubscribe(t *testing.T) {
	var sub *gateway.Subscription
	assert.NotPanics(t, sub.Unsubscribe)
}

func TestRedisBroker_UnreachableServer(t *testing.T) {
	_, err := gateway.NewRedisBroker("127.0.0.1:1", "", 0, "tenantly:", zap.NewNop())
	assert.Error(t, err)
}
