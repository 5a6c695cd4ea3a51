package controllers_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"go-farmmarket/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type chatFixture struct {
	env    *testEnv
	farmer account
	buyer  account
	chat   models.Chat
}

func newChatFixture(t *testing.T) *chatFixture {
	env := newTestEnv(t)
	f := &chatFixture{
		env:    env,
		farmer: env.register("Meena", "meena@farm.test", models.RoleFarmer),
		buyer:  env.register("Ravi", "ravi@farm.test", models.RoleBuyer),
	}
	rec := env.do(http.MethodPost, "/api/chats", f.buyer.Token, map[string]string{
		"participant_id": f.farmer.User.ID.Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decodeJSON(t, rec, &f.chat)
	return f
}

func (f *chatFixture) send(t *testing.T, from account, text string) models.Message {
	t.Helper()
	rec := f.env.do(http.MethodPost, "/api/chats/"+f.chat.ID.Hex()+"/messages", from.Token, map[string]string{"text": text})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg models.Message
	decodeJSON(t, rec, &msg)
	return msg
}

func (f *chatFixture) stored(t *testing.T) *models.Chat {
	t.Helper()
	chat, err := f.env.store.Chats.FindChatByID(context.Background(), f.chat.ID)
	require.NoError(t, err)
	return chat
}

func TestOpenChatIsIdempotent(t *testing.T) {
	f := newChatFixture(t)
	assert.ElementsMatch(t, []primitive.ObjectID{f.buyer.User.ID, f.farmer.User.ID}, f.chat.Participants)

	rec := f.env.do(http.MethodPost, "/api/chats", f.farmer.Token, map[string]string{
		"participant_id": f.buyer.User.ID.Hex(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var again models.Chat
	decodeJSON(t, rec, &again)
	assert.Equal(t, f.chat.ID, again.ID)

	rec = f.env.do(http.MethodPost, "/api/chats", f.farmer.Token, map[string]string{
		"participant_id": f.farmer.User.ID.Hex(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.env.do(http.MethodPost, "/api/chats", f.farmer.Token, map[string]string{
		"participant_id": "64b7f0000000000000000000",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetChatWithDoesNotCreate(t *testing.T) {
	f := newChatFixture(t)
	stranger := f.env.register("Sam", "sam@farm.test", models.RoleBuyer)

	rec := f.env.do(http.MethodGet, "/api/chats/with/"+f.farmer.User.ID.Hex(), stranger.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	chats, err := f.env.store.Chats.ListChatsForUser(context.Background(), stranger.User.ID)
	require.NoError(t, err)
	assert.Empty(t, chats)

	rec = f.env.do(http.MethodGet, "/api/chats/with/"+f.farmer.User.ID.Hex(), f.buyer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var chat models.Chat
	decodeJSON(t, rec, &chat)
	assert.Equal(t, f.chat.ID, chat.ID)
}

func TestSendMessageBumpsUnreadByOne(t *testing.T) {
	f := newChatFixture(t)

	first := f.send(t, f.buyer, "Are the carrots fresh?")
	chat := f.stored(t)
	assert.Equal(t, 1, chat.UnreadCount)
	require.NotNil(t, chat.LastMessageID)
	assert.Equal(t, first.ID, *chat.LastMessageID)
	assert.Equal(t, "Are the carrots fresh?", chat.LastMessageText)

	second := f.send(t, f.farmer, "Picked this morning")
	chat = f.stored(t)
	assert.Equal(t, 2, chat.UnreadCount)
	assert.Equal(t, second.ID, *chat.LastMessageID)
	assert.Equal(t, f.farmer.User.ID, second.SenderID)
	assert.Equal(t, models.MessageText, second.Type)
	assert.False(t, second.IsRead)

	toFarmer := f.env.events.to("user:"+f.farmer.User.ID.Hex(), models.EventNewMessage)
	require.Len(t, toFarmer, 1)
	assert.Equal(t, first.ID, toFarmer[0].Payload.(models.NewMessageEvent).Message.ID)
	assert.Len(t, f.env.events.to("chat:"+f.chat.ID.Hex(), models.EventNewMessage), 2)
}

func TestSendMessageValidation(t *testing.T) {
	f := newChatFixture(t)
	path := "/api/chats/" + f.chat.ID.Hex() + "/messages"

	rec := f.env.do(http.MethodPost, path, f.buyer.Token, map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.env.do(http.MethodPost, path, f.buyer.Token, map[string]string{"type": "image"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.env.do(http.MethodPost, path, f.buyer.Token, map[string]string{"type": "video", "media_url": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.env.do(http.MethodPost, path, f.buyer.Token, map[string]string{"type": "image", "media_url": "https://cdn.test/a.jpg"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, 1, f.stored(t).UnreadCount)
}

func TestMarkAsReadFlagsExactlyGivenMessages(t *testing.T) {
	f := newChatFixture(t)
	a := f.send(t, f.buyer, "one")
	b := f.send(t, f.buyer, "two")
	c := f.send(t, f.buyer, "three")
	require.Equal(t, 3, f.stored(t).UnreadCount)

	rec := f.env.do(http.MethodPut, "/api/chats/"+f.chat.ID.Hex()+"/read", f.farmer.Token, map[string][]string{
		"message_ids": {a.ID.Hex(), c.ID.Hex()},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]int64
	decodeJSON(t, rec, &out)
	assert.Equal(t, int64(2), out["modified"])

	assert.Equal(t, 0, f.stored(t).UnreadCount)

	read := map[string]bool{}
	rec = f.env.do(http.MethodGet, "/api/chats/"+f.chat.ID.Hex()+"/messages", f.farmer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []models.Message
	decodeJSON(t, rec, &msgs)
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		read[m.ID.Hex()] = m.IsRead
	}
	assert.Equal(t, map[string]bool{a.ID.Hex(): true, b.ID.Hex(): false, c.ID.Hex(): true}, read)
}

func TestGetMessagesPaging(t *testing.T) {
	f := newChatFixture(t)
	for _, text := range []string{"a", "b", "c", "d"} {
		f.send(t, f.buyer, text)
	}

	rec := f.env.do(http.MethodGet, "/api/chats/"+f.chat.ID.Hex()+"/messages?limit=2", f.buyer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page []models.Message
	decodeJSON(t, rec, &page)
	require.Len(t, page, 2)

	rec = f.env.do(http.MethodGet, "/api/chats/"+f.chat.ID.Hex()+"/messages?limit=0", f.buyer.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.env.do(http.MethodGet, "/api/chats/"+f.chat.ID.Hex()+"/messages?before=yesterday", f.buyer.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchAndDeleteMessages(t *testing.T) {
	f := newChatFixture(t)
	f.send(t, f.buyer, "Do you have ORGANIC spinach?")
	reply := f.send(t, f.farmer, "Organic spinach is in stock")
	f.send(t, f.buyer, "Great")

	q := url.Values{"q": {"organic"}}
	rec := f.env.do(http.MethodGet, "/api/chats/"+f.chat.ID.Hex()+"/messages/search?"+q.Encode(), f.buyer.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []models.Message
	decodeJSON(t, rec, &found)
	assert.Len(t, found, 2)

	rec = f.env.do(http.MethodGet, "/api/chats/"+f.chat.ID.Hex()+"/messages/search", f.buyer.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/chats/" + f.chat.ID.Hex() + "/messages/" + reply.ID.Hex()
	rec = f.env.do(http.MethodDelete, path, f.buyer.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.env.do(http.MethodDelete, path, f.farmer.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.env.do(http.MethodDelete, path, f.farmer.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSettingsAndBlocking(t *testing.T) {
	f := newChatFixture(t)

	rec := f.env.do(http.MethodPut, "/api/chats/"+f.chat.ID.Hex()+"/settings", f.farmer.Token, map[string]bool{
		"is_muted":   true,
		"is_blocked": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var chat models.Chat
	decodeJSON(t, rec, &chat)
	assert.True(t, chat.IsMuted)
	assert.True(t, chat.IsBlocked)
	assert.False(t, chat.IsArchived)

	rec = f.env.do(http.MethodPost, "/api/chats/"+f.chat.ID.Hex()+"/messages", f.buyer.Token, map[string]string{"text": "hello?"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, f.stored(t).UnreadCount)
}

func TestChatAccessIsLimitedToParticipants(t *testing.T) {
	f := newChatFixture(t)
	stranger := f.env.register("Sam", "sam@farm.test", models.RoleBuyer)

	rec := f.env.do(http.MethodGet, "/api/chats/"+f.chat.ID.Hex()+"/messages", stranger.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.env.do(http.MethodPost, "/api/chats/"+f.chat.ID.Hex()+"/messages", stranger.Token, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.env.do(http.MethodGet, "/api/chats/64b7f0000000000000000000/messages", f.buyer.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.env.do(http.MethodGet, "/api/chats", stranger.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
