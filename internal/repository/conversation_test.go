package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/testutil"
)

func TestGetOrCreateConversation_IsSymmetric(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewConversationRepository(gw, zap.NewNop())
	ctx := context.Background()

	a := testutil.CreateProfile(t, gw, "Ada", model.RoleTenant, true)
	b := testutil.CreateProfile(t, gw, "Bo", model.RoleLandlord, true)

	first, err := repo.GetOrCreateConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := repo.GetOrCreateConversation(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var n int64
	require.NoError(t, gw.DB.Model(&model.Conversation{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestGetOrCreateConversation_Validation(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewConversationRepository(gw, zap.NewNop())
	ctx := context.Background()

	_, err := repo.GetOrCreateConversation(ctx, "", "someone")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	_, err = repo.GetOrCreateConversation(ctx, "same", "same")
	var validation *apperr.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestGetOrCreateConversation_ConcurrentCallersConverge(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewConversationRepository(gw, zap.NewNop())
	ctx := context.Background()

	a := testutil.CreateProfile(t, gw, "Ada", model.RoleTenant, true)
	b := testutil.CreateProfile(t, gw, "Bo", model.RoleLandlord, true)

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				ids[i], errs[i] = repo.GetOrCreateConversation(ctx, a.ID, b.ID)
			} else {
				ids[i], errs[i] = repo.GetOrCreateConversation(ctx, b.ID, a.ID)
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var n int64
	require.NoError(t, gw.DB.Model(&model.Conversation{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestSendMessage_UpdatesConversation(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewConversationRepository(gw, zap.NewNop())
	ctx := context.Background()

	a := testutil.CreateProfile(t, gw, "Ada", model.RoleTenant, true)
	b := testutil.CreateProfile(t, gw, "Bo", model.RoleLandlord, true)
	convID, err := repo.GetOrCreateConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)

	msg, err := repo.SendMessage(ctx, convID, a.ID, b.ID, "  hello there  ")
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Content)
	assert.False(t, msg.Read)

	conv := repo.GetConversation(ctx, convID)
	require.NotNil(t, conv)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "hello there", *conv.LastMessage)
	assert.NotNil(t, conv.LastMessageAt)

	other := OtherParticipant(conv, a.ID)
	require.NotNil(t, other)
	assert.Equal(t, b.ID, other.ID)

	msgs := repo.GetConversationMessages(ctx, convID, 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)

	_, err = repo.SendMessage(ctx, "missing", a.ID, b.ID, "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = repo.SendMessage(ctx, convID, "", b.ID, "hi")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestGetUserConversations_OrdersByActivity(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewConversationRepository(gw, zap.NewNop())
	ctx := context.Background()

	me := testutil.CreateProfile(t, gw, "Me", model.RoleTenant, true)
	quiet := testutil.CreateProfile(t, gw, "Quiet", model.RoleLandlord, true)
	chatty := testutil.CreateProfile(t, gw, "Chatty", model.RoleLandlord, true)

	quietID, err := repo.GetOrCreateConversation(ctx, me.ID, quiet.ID)
	require.NoError(t, err)
	chattyID, err := repo.GetOrCreateConversation(ctx, me.ID, chatty.ID)
	require.NoError(t, err)
	_, err = repo.SendMessage(ctx, chattyID, chatty.ID, me.ID, "ping")
	require.NoError(t, err)

	convs := repo.GetUserConversations(ctx, me.ID)
	require.Len(t, convs, 2)
	assert.Equal(t, chattyID, convs[0].ID)
	assert.Equal(t, quietID, convs[1].ID)
	assert.NotNil(t, convs[0].Participant1)
	assert.NotNil(t, convs[0].Participant2)

	assert.Empty(t, repo.GetUserConversations(ctx, "nobody"))
	assert.Nil(t, repo.GetConversation(ctx, "missing"))
}

func TestUnreadCounts_SumMatches(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewConversationRepository(gw, zap.NewNop())
	ctx := context.Background()

	me := testutil.CreateProfile(t, gw, "Me", model.RoleTenant, true)
	x := testutil.CreateProfile(t, gw, "X", model.RoleLandlord, true)
	y := testutil.CreateProfile(t, gw, "Y", model.RoleLandlord, true)

	cx, err := repo.GetOrCreateConversation(ctx, me.ID, x.ID)
	require.NoError(t, err)
	cy, err := repo.GetOrCreateConversation(ctx, me.ID, y.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = repo.SendMessage(ctx, cx, x.ID, me.ID, "from x")
		require.NoError(t, err)
	}
	_, err = repo.SendMessage(ctx, cy, y.ID, me.ID, "from y")
	require.NoError(t, err)
	_, err = repo.SendMessage(ctx, cy, me.ID, y.ID, "reply")
	require.NoError(t, err)

	byConv := repo.GetUnreadCountByConversation(ctx, me.ID)
	total := repo.GetUnreadCount(ctx, me.ID)

	var sum int64
	for _, n := range byConv {
		sum += n
	}
	assert.Equal(t, int64(4), total)
	assert.Equal(t, total, sum)
	assert.Equal(t, int64(3), byConv[cx])
	assert.Equal(t, int64(1), byConv[cy])

	require.NoError(t, repo.MarkConversationAsRead(ctx, cx, me.ID))
	assert.Equal(t, int64(1), repo.GetUnreadCount(ctx, me.ID))
	assert.NotContains(t, repo.GetUnreadCountByConversation(ctx, me.ID), cx)

	assert.Empty(t, repo.GetUnreadCountByConversation(ctx, "nobody"))
}

func TestSubscribeToConversation_FiresOncePerInsertAndStops(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewConversationRepository(gw, zap.NewNop())
	ctx := context.Background()

	a := testutil.CreateProfile(t, gw, "Ada", model.RoleTenant, true)
	b := testutil.CreateProfile(t, gw, "Bo", model.RoleLandlord, true)
	c := testutil.CreateProfile(t, gw, "Cy", model.RoleLandlord, true)
	convID, err := repo.GetOrCreateConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	otherID, err := repo.GetOrCreateConversation(ctx, a.ID, c.ID)
	require.NoError(t, err)

	got := make(chan model.Message, 10)
	sub, err := repo.SubscribeToConversation(ctx, convID, func(m model.Message) { got <- m })
	require.NoError(t, err)

	sent, err := repo.SendMessage(ctx, convID, a.ID, b.ID, "first")
	require.NoError(t, err)
	_, err = repo.SendMessage(ctx, otherID, a.ID, c.ID, "elsewhere")
	require.NoError(t, err)

	select {
	case m := <-got:
		assert.Equal(t, sent.ID, m.ID)
		assert.Equal(t, "first", m.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("no message event received")
	}

	repo.Unsubscribe(sub)
	repo.Unsubscribe(sub)

	_, err = repo.SendMessage(ctx, convID, b.ID, a.ID, "after release")
	require.NoError(t, err)

	select {
	case m := <-got:
		t.Fatalf("unexpected event after release: %q", m.Content)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeToMessageUpdates_ReceivesReadReceipts(t *testing.T) {
	gw := testutil.NewGateway(t)
	repo := NewConversationRepository(gw, zap.NewNop())
	ctx := context.Background()

	a := testutil.CreateProfile(t, gw, "Ada", model.RoleTenant, true)
	b := testutil.CreateProfile(t, gw, "Bo", model.RoleLandlord, true)
	convID, err := repo.GetOrCreateConversation(ctx, a.ID, b.ID)
	require.NoError(t, err)
	msg, err := repo.SendMessage(ctx, convID, a.ID, b.ID, "read me")
	require.NoError(t, err)

	got := make(chan model.Message, 10)
	sub, err := repo.SubscribeToMessageUpdates(ctx, convID, func(m model.Message) { got <- m })
	require.NoError(t, err)
	defer repo.Unsubscribe(sub)

	require.NoError(t, repo.MarkMessageAsRead(ctx, msg.ID))

	select {
	case m := <-got:
		assert.Equal(t, msg.ID, m.ID)
		assert.True(t, m.Read)
		assert.NotNil(t, m.ReadAt)
	case <-time.After(2 * time.Second):
		t.Fatal("no update event received")
	}
}
