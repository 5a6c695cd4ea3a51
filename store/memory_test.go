package store

import (
	"context"
	"testing"
	"time"

	"go-farmmarket/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryUsersRejectDuplicateEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Users.CreateUser(ctx, &models.User{Name: "A", Email: "a@farm.test"}))
	err := s.Users.CreateUser(ctx, &models.User{Name: "B", Email: "a@farm.test"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.Users.FindUserByEmail(ctx, "b@farm.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryVerifyUserOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u := &models.User{Email: "a@farm.test", VerificationToken: "tok-1"}
	require.NoError(t, s.Users.CreateUser(ctx, u))

	_, err := s.Users.VerifyUser(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	verified, err := s.Users.VerifyUser(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, verified.ID)
	assert.True(t, verified.IsVerified)
	assert.Empty(t, verified.VerificationToken)

	_, err = s.Users.VerifyUser(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryProductsAreCopied(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := &models.Product{Name: "Honey", Tags: []string{"raw"}, Stock: 4}
	require.NoError(t, s.Products.CreateProduct(ctx, p))
	p.Tags[0] = "changed"

	got, err := s.Products.FindProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"raw"}, got.Tags)

	got.Tags[0] = "mutated"
	again, err := s.Products.FindProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"raw"}, again.Tags)

	require.NoError(t, s.Products.AdjustStock(ctx, p.ID, -3))
	again, err = s.Products.FindProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Stock)

	assert.ErrorIs(t, s.Products.AdjustStock(ctx, p.ID, -2), ErrInsufficientStock)
	again, err = s.Products.FindProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Stock)

	assert.ErrorIs(t, s.Products.AdjustStock(ctx, primitive.NewObjectID(), 1), ErrNotFound)
}

func TestMemoryOrdersNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buyer := primitive.NewObjectID()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Orders.CreateOrder(ctx, &models.Order{
			OrderRef:  string(rune('A' + i)),
			BuyerID:   buyer,
			Status:    models.OrderPending,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.Orders.CreateOrder(ctx, &models.Order{BuyerID: primitive.NewObjectID()}))

	orders, err := s.Orders.ListOrders(ctx, models.OrderFilter{BuyerID: buyer})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "C", orders[0].OrderRef)
	assert.Equal(t, "A", orders[2].OrderRef)

	status := models.OrderShipped
	updated, err := s.Orders.UpdateOrder(ctx, orders[1].ID, models.OrderUpdate{
		Status:   &status,
		Tracking: &models.TrackingInfo{Carrier: "IndiaPost"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, updated.Status)
	assert.Equal(t, "IndiaPost", updated.Tracking.Carrier)

	shipped, err := s.Orders.ListOrders(ctx, models.OrderFilter{BuyerID: buyer, Status: models.OrderShipped})
	require.NoError(t, err)
	assert.Len(t, shipped, 1)

	_, err = s.Orders.UpdateOrder(ctx, primitive.NewObjectID(), models.OrderUpdate{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryChatCounters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	chat := &models.Chat{Participants: []primitive.ObjectID{a, b}}
	require.NoError(t, s.Chats.CreateChat(ctx, chat))

	found, err := s.Chats.FindChatBetween(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, found.ID)
	_, err = s.Chats.FindChatBetween(ctx, a, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var ids []primitive.ObjectID
	for i, text := range []string{"first", "second", "third"} {
		msg := &models.Message{ChatID: chat.ID, SenderID: a, Type: models.MessageText, Text: text, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.Chats.InsertMessage(ctx, msg))
		require.NoError(t, s.Chats.TouchLastMessage(ctx, chat.ID, msg))
		ids = append(ids, msg.ID)
	}

	got, err := s.Chats.FindChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.UnreadCount)
	assert.Equal(t, ids[2], *got.LastMessageID)
	assert.Equal(t, "third", got.LastMessageText)

	n, err := s.Chats.MarkMessagesRead(ctx, chat.ID, []primitive.ObjectID{ids[0], ids[1], primitive.NewObjectID()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = s.Chats.MarkMessagesRead(ctx, chat.ID, []primitive.ObjectID{ids[0]})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, s.Chats.ResetUnread(ctx, chat.ID))
	got, err = s.Chats.FindChatByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadCount)

	assert.ErrorIs(t, s.Chats.TouchLastMessage(ctx, primitive.NewObjectID(), &models.Message{}), ErrNotFound)
}

func TestMemoryChatsOrderedByLastMessage(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	me := primitive.NewObjectID()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	var chats []*models.Chat
	for i := 0; i < 3; i++ {
		c := &models.Chat{Participants: []primitive.ObjectID{me, primitive.NewObjectID()}, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.Chats.CreateChat(ctx, c))
		chats = append(chats, c)
	}
	for i, c := range chats[:2] {
		msg := &models.Message{ChatID: c.ID, SenderID: me, Type: models.MessageText, Text: "hi", CreatedAt: base.Add(time.Duration(10+i) * time.Hour)}
		require.NoError(t, s.Chats.InsertMessage(ctx, msg))
		require.NoError(t, s.Chats.TouchLastMessage(ctx, c.ID, msg))
	}

	muted := true
	_, err := s.Chats.UpdateChatSettings(ctx, chats[0].ID, models.ChatSettings{IsMuted: &muted})
	require.NoError(t, err)

	list, err := s.Chats.ListChatsForUser(ctx, me)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, chats[1].ID, list[0].ID)
	assert.Equal(t, chats[0].ID, list[1].ID)
	assert.Equal(t, chats[2].ID, list[2].ID)
	assert.True(t, list[1].IsMuted)
}

func TestMemoryListMessagesPages(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	chatID := primitive.NewObjectID()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, text := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.Chats.InsertMessage(ctx, &models.Message{
			ChatID:    chatID,
			Text:      text,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Chats.InsertMessage(ctx, &models.Message{ChatID: primitive.NewObjectID(), Text: "elsewhere"}))

	texts := func(msgs []models.Message) []string {
		out := make([]string, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, m.Text)
		}
		return out
	}

	page, err := s.Chats.ListMessages(ctx, chatID, time.Time{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "e"}, texts(page))

	page, err = s.Chats.ListMessages(ctx, chatID, page[0].CreatedAt, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, texts(page))

	page, err = s.Chats.ListMessages(ctx, chatID, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, texts(page))

	found, err := s.Chats.SearchMessages(ctx, chatID, "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, texts(found))
}

func TestMemoryFarmerUpsertKeepsIdentity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	user := primitive.NewObjectID()

	first, err := s.Farmers.UpsertFarmerProfile(ctx, &models.FarmerProfile{UserID: user, FarmName: "Green Acres"})
	require.NoError(t, err)
	second, err := s.Farmers.UpsertFarmerProfile(ctx, &models.FarmerProfile{UserID: user, FarmName: "Green Acres Farm"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := s.Farmers.FindFarmerProfile(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Green Acres Farm", got.FarmName)

	_, err = s.Farmers.FindFarmerProfile(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}
