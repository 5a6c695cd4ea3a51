package store

import (
	"context"
	"testing"
	"time"

	"go-farmmarket/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoUsers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find by email", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "farmmarket.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Meena"},
			{Key: "email", Value: "meena@farm.test"},
			{Key: "role", Value: "farmer"},
		}))

		s := &MongoUsers{Collection: mt.Coll}
		user, err := s.FindUserByEmail(context.Background(), "meena@farm.test")
		require.NoError(mt, err)
		assert.Equal(mt, id, user.ID)
		assert.Equal(mt, models.RoleFarmer, user.Role)
	})

	mt.Run("missing user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "farmmarket.users", mtest.FirstBatch))

		s := &MongoUsers{Collection: mt.Coll}
		_, err := s.FindUserByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("verify user", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: id},
				{Key: "email", Value: "meena@farm.test"},
				{Key: "is_verified", Value: true},
			}},
		})

		s := &MongoUsers{Collection: mt.Coll}
		user, err := s.VerifyUser(context.Background(), "tok-1")
		require.NoError(mt, err)
		assert.Equal(mt, id, user.ID)
		assert.True(mt, user.IsVerified)
	})

	mt.Run("verify with used token", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})

		s := &MongoUsers{Collection: mt.Coll}
		_, err := s.VerifyUser(context.Background(), "tok-1")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: farmmarket.users index: email_1",
		}))

		s := &MongoUsers{Collection: mt.Coll}
		user := &models.User{Email: "meena@farm.test"}
		err := s.CreateUser(context.Background(), user)
		assert.ErrorIs(mt, err, ErrDuplicate)
		assert.False(mt, user.ID.IsZero())
	})
}

func TestMongoAdjustStock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deduction within stock", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})

		s := &MongoProducts{Collection: mt.Coll}
		require.NoError(mt, s.AdjustStock(context.Background(), primitive.NewObjectID(), -2))
	})

	mt.Run("deduction beyond stock", func(mt *mtest.T) {
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}},
			mtest.CreateCursorResponse(0, "farmmarket.products", mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
		)

		s := &MongoProducts{Collection: mt.Coll}
		err := s.AdjustStock(context.Background(), primitive.NewObjectID(), -5)
		assert.ErrorIs(mt, err, ErrInsufficientStock)
	})

	mt.Run("missing product", func(mt *mtest.T) {
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}},
			mtest.CreateCursorResponse(0, "farmmarket.products", mtest.FirstBatch),
		)

		s := &MongoProducts{Collection: mt.Coll}
		err := s.AdjustStock(context.Background(), primitive.NewObjectID(), -1)
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoOrders(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("update returns new document", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: id},
				{Key: "order_ref", Value: "FM-20240501090000-ABCDEF12"},
				{Key: "status", Value: "delivered"},
				{Key: "total_amount", Value: 8.8},
			}},
		})

		s := &MongoOrders{Collection: mt.Coll}
		status := models.OrderDelivered
		order, err := s.UpdateOrder(context.Background(), id, models.OrderUpdate{Status: &status})
		require.NoError(mt, err)
		assert.Equal(mt, models.OrderDelivered, order.Status)
		assert.Equal(mt, 8.8, order.TotalAmount)
	})

	mt.Run("update of missing order", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})

		s := &MongoOrders{Collection: mt.Coll}
		status := models.OrderAccepted
		_, err := s.UpdateOrder(context.Background(), primitive.NewObjectID(), models.OrderUpdate{Status: &status})
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		buyer := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "farmmarket.orders", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "buyer_id", Value: buyer}, {Key: "status", Value: "pending"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "buyer_id", Value: buyer}, {Key: "status", Value: "shipped"}},
		))

		s := &MongoOrders{Collection: mt.Coll}
		orders, err := s.ListOrders(context.Background(), models.OrderFilter{BuyerID: buyer})
		require.NoError(mt, err)
		require.Len(mt, orders, 2)
		assert.Equal(mt, models.OrderShipped, orders[1].Status)
	})
}

func TestMongoChats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("touch last message", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})

		s := &MongoChats{Chats: mt.Coll, Messages: mt.Coll}
		msg := &models.Message{ID: primitive.NewObjectID(), Text: "hi", CreatedAt: time.Now().UTC()}
		assert.NoError(mt, s.TouchLastMessage(context.Background(), primitive.NewObjectID(), msg))
	})

	mt.Run("touch missing chat", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})

		s := &MongoChats{Chats: mt.Coll, Messages: mt.Coll}
		err := s.TouchLastMessage(context.Background(), primitive.NewObjectID(), &models.Message{})
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("mark read counts modified", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 2}, {Key: "nModified", Value: 2}})

		s := &MongoChats{Chats: mt.Coll, Messages: mt.Coll}
		n, err := s.MarkMessagesRead(context.Background(), primitive.NewObjectID(), []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()})
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})

	mt.Run("mark read without ids skips the round trip", func(mt *mtest.T) {
		s := &MongoChats{Chats: mt.Coll, Messages: mt.Coll}
		n, err := s.MarkMessagesRead(context.Background(), primitive.NewObjectID(), nil)
		require.NoError(mt, err)
		assert.Zero(mt, n)
	})

	mt.Run("messages come back oldest first", func(mt *mtest.T) {
		chatID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "farmmarket.messages", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "chat_id", Value: chatID}, {Key: "text", Value: "newest"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "chat_id", Value: chatID}, {Key: "text", Value: "older"}},
		))

		s := &MongoChats{Chats: mt.Coll, Messages: mt.Coll}
		msgs, err := s.ListMessages(context.Background(), chatID, time.Time{}, 2)
		require.NoError(mt, err)
		require.Len(mt, msgs, 2)
		assert.Equal(mt, "older", msgs[0].Text)
		assert.Equal(mt, "newest", msgs[1].Text)
	})

	mt.Run("delete missing message", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})

		s := &MongoChats{Chats: mt.Coll, Messages: mt.Coll}
		err := s.DeleteMessage(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestProductQuery(t *testing.T) {
	organic := true
	minPrice := 2.0
	q := productQuery(models.ProductFilter{
		Category: "fruit",
		Organic:  &organic,
		Query:    "apple (red)",
		MinPrice: &minPrice,
	})

	assert.Equal(t, primitive.Regex{Pattern: `^fruit$`, Options: "i"}, q["category"])
	assert.Equal(t, primitive.Regex{Pattern: `apple \(red\)`, Options: "i"}, q["name"])
	assert.Equal(t, true, q["is_organic"])
	assert.Equal(t, bson.M{"$gte": 2.0}, q["price"])
	assert.NotContains(t, q, "farmer_id")
}
