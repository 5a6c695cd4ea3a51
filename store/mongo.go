package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go-farmmarket/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	UsersCollection    = "users"
	ProductsCollection = "products"
	OrdersCollection   = "orders"
	ChatsCollection    = "chats"
	MessagesCollection = "messages"
	FarmersCollection  = "farmer_profiles"
)

// NewMongoStore returns a Store backed by the collections of db
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users:    &MongoUsers{Collection: db.Collection(UsersCollection)},
		Products: &MongoProducts{Collection: db.Collection(ProductsCollection)},
		Orders:   &MongoOrders{Collection: db.Collection(OrdersCollection)},
		Chats: &MongoChats{
			Chats:    db.Collection(ChatsCollection),
			Messages: db.Collection(MessagesCollection),
		},
		Farmers: &MongoFarmers{Collection: db.Collection(FarmersCollection)},
	}
}

// EnsureIndexes creates the indexes the queries rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "verification_token", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		ProductsCollection: {
			{Keys: bson.D{{Key: "farmer_id", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "farmer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ChatsCollection: {
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}}},
		},
		MessagesCollection: {
			{Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		FarmersCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// mapErr translates driver errors into the store sentinels
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// ---- users ----

// MongoUsers stores users in a collection
type MongoUsers struct {
	Collection *mongo.Collection
}

func (s *MongoUsers) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, user)
	return mapErr(err)
}

func (s *MongoUsers) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (s *MongoUsers) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.Collection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (s *MongoUsers) UpdateUser(ctx context.Context, id primitive.ObjectID, update models.UserUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Address != nil {
		set["address"] = *update.Address
	}
	if update.DeviceToken != nil {
		set["device_token"] = *update.DeviceToken
	}

	var user models.User
	err := s.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&user)
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (s *MongoUsers) VerifyUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	update := bson.M{
		"$set":   bson.M{"is_verified": true, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"verification_token": ""},
	}
	var user models.User
	err := s.Collection.FindOneAndUpdate(ctx, bson.M{"verification_token": token}, update, afterUpdate()).Decode(&user)
	if err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

// ---- products ----

// MongoProducts stores products in a collection
type MongoProducts struct {
	Collection *mongo.Collection
}

func (s *MongoProducts) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, product)
	return mapErr(err)
}

func (s *MongoProducts) FindProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	if err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, mapErr(err)
	}
	return &product, nil
}

// productQuery turns a ProductFilter into a query document
func productQuery(f models.ProductFilter) bson.M {
	query := bson.M{}
	if !f.FarmerID.IsZero() {
		query["farmer_id"] = f.FarmerID
	}
	if f.Category != "" {
		query["category"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.Category) + "$", Options: "i"}
	}
	if f.Organic != nil {
		query["is_organic"] = *f.Organic
	}
	if f.Query != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	return query
}

func (s *MongoProducts) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.Collection.Find(ctx, productQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *MongoProducts) UpdateProduct(ctx context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Price != nil {
		set["price"] = *update.Price
	}
	if update.Unit != nil {
		set["unit"] = *update.Unit
	}
	if update.Category != nil {
		set["category"] = *update.Category
	}
	if update.Images != nil {
		set["images"] = update.Images
	}
	if update.Stock != nil {
		set["stock"] = *update.Stock
	}
	if update.IsOrganic != nil {
		set["is_organic"] = *update.IsOrganic
	}
	if update.HarvestDate != nil {
		set["harvest_date"] = *update.HarvestDate
	}
	if update.Tags != nil {
		set["tags"] = update.Tags
	}

	var product models.Product
	err := s.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&product)
	if err != nil {
		return nil, mapErr(err)
	}
	return &product, nil
}

func (s *MongoProducts) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoProducts) SetProductRatings(ctx context.Context, id primitive.ObjectID, ratings []models.ProductRating, average float64) (*models.Product, error) {
	update := bson.M{"$set": bson.M{
		"ratings":        ratings,
		"average_rating": average,
		"updated_at":     time.Now().UTC(),
	}}
	var product models.Product
	err := s.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&product)
	if err != nil {
		return nil, mapErr(err)
	}
	return &product, nil
}

func (s *MongoProducts) AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error {
	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	result, err := s.Collection.UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"stock": delta},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}
	if delta >= 0 {
		return ErrNotFound
	}
	count, err := s.Collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrInsufficientStock
}

// ---- orders ----

// MongoOrders stores orders in a collection
type MongoOrders struct {
	Collection *mongo.Collection
}

func (s *MongoOrders) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := s.Collection.InsertOne(ctx, order)
	return mapErr(err)
}

func (s *MongoOrders) FindOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := s.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, mapErr(err)
	}
	return &order, nil
}

func (s *MongoOrders) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	query := bson.M{}
	if !filter.BuyerID.IsZero() {
		query["buyer_id"] = filter.BuyerID
	}
	if !filter.FarmerID.IsZero() {
		query["farmer_id"] = filter.FarmerID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// orderSet builds the $set document of an OrderUpdate
func orderSet(update models.OrderUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Tracking != nil {
		set["tracking"] = *update.Tracking
	}
	if update.Rating != nil {
		set["rating"] = *update.Rating
	}
	if update.RejectReason != nil {
		set["reject_reason"] = *update.RejectReason
	}
	if update.CancelReason != nil {
		set["cancel_reason"] = *update.CancelReason
	}
	if update.AcceptedAt != nil {
		set["accepted_at"] = *update.AcceptedAt
	}
	if update.ShippedAt != nil {
		set["shipped_at"] = *update.ShippedAt
	}
	if update.DeliveredAt != nil {
		set["delivered_at"] = *update.DeliveredAt
	}
	if update.CancelledAt != nil {
		set["cancelled_at"] = *update.CancelledAt
	}
	return set
}

func (s *MongoOrders) UpdateOrder(ctx context.Context, id primitive.ObjectID, update models.OrderUpdate) (*models.Order, error) {
	var order models.Order
	set := orderSet(update, time.Now().UTC())
	err := s.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&order)
	if err != nil {
		return nil, mapErr(err)
	}
	return &order, nil
}

// ---- chats and messages ----

// MongoChats stores chats and messages in two collections
type MongoChats struct {
	Chats    *mongo.Collection
	Messages *mongo.Collection
}

func (s *MongoChats) CreateChat(ctx context.Context, chat *models.Chat) error {
	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	_, err := s.Chats.InsertOne(ctx, chat)
	return mapErr(err)
}

func (s *MongoChats) FindChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	if err := s.Chats.FindOne(ctx, bson.M{"_id": id}).Decode(&chat); err != nil {
		return nil, mapErr(err)
	}
	return &chat, nil
}

func (s *MongoChats) FindChatBetween(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	query := bson.M{"participants": bson.M{
		"$all":  bson.A{a, b},
		"$size": 2,
	}}
	var chat models.Chat
	if err := s.Chats.FindOne(ctx, query).Decode(&chat); err != nil {
		return nil, mapErr(err)
	}
	return &chat, nil
}

func (s *MongoChats) ListChatsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	// Settings changes touch updated_at, so activity is ordered by the last message
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := s.Chats.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	chats := []models.Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (s *MongoChats) UpdateChatSettings(ctx context.Context, id primitive.ObjectID, settings models.ChatSettings) (*models.Chat, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if settings.IsMuted != nil {
		set["is_muted"] = *settings.IsMuted
	}
	if settings.IsArchived != nil {
		set["is_archived"] = *settings.IsArchived
	}
	if settings.IsBlocked != nil {
		set["is_blocked"] = *settings.IsBlocked
	}
	var chat models.Chat
	err := s.Chats.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&chat)
	if err != nil {
		return nil, mapErr(err)
	}
	return &chat, nil
}

func (s *MongoChats) TouchLastMessage(ctx context.Context, chatID primitive.ObjectID, msg *models.Message) error {
	result, err := s.Chats.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{
		"$set": bson.M{
			"last_message_id":   msg.ID,
			"last_message_text": msg.Text,
			"last_message_at":   msg.CreatedAt,
			"updated_at":        msg.CreatedAt,
		},
		"$inc": bson.M{"unread_count": 1},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoChats) ResetUnread(ctx context.Context, chatID primitive.ObjectID) error {
	result, err := s.Chats.UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{
		"$set": bson.M{"unread_count": 0},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoChats) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := s.Messages.InsertOne(ctx, msg)
	return mapErr(err)
}

func (s *MongoChats) FindMessageByID(ctx context.Context, chatID, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	if err := s.Messages.FindOne(ctx, bson.M{"_id": id, "chat_id": chatID}).Decode(&msg); err != nil {
		return nil, mapErr(err)
	}
	return &msg, nil
}

func (s *MongoChats) ListMessages(ctx context.Context, chatID primitive.ObjectID, before time.Time, limit int) ([]models.Message, error) {
	query := bson.M{"chat_id": chatID}
	if !before.IsZero() {
		query["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.Messages.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []models.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *MongoChats) MarkMessagesRead(ctx context.Context, chatID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := s.Messages.UpdateMany(ctx,
		bson.M{"chat_id": chatID, "_id": bson.M{"$in": ids}, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (s *MongoChats) SearchMessages(ctx context.Context, chatID primitive.ObjectID, query string) ([]models.Message, error) {
	filter := bson.M{
		"chat_id": chatID,
		"text":    primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.Messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []models.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *MongoChats) DeleteMessage(ctx context.Context, chatID, id primitive.ObjectID) error {
	result, err := s.Messages.DeleteOne(ctx, bson.M{"_id": id, "chat_id": chatID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- farmer profiles ----

// MongoFarmers stores farmer profiles in a collection
type MongoFarmers struct {
	Collection *mongo.Collection
}

func (s *MongoFarmers) UpsertFarmerProfile(ctx context.Context, profile *models.FarmerProfile) (*models.FarmerProfile, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"farm_name":      profile.FarmName,
			"description":    profile.Description,
			"location":       profile.Location,
			"certifications": profile.Certifications,
			"photo_url":      profile.PhotoURL,
			"updated_at":     now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := afterUpdate().SetUpsert(true)

	var saved models.FarmerProfile
	err := s.Collection.FindOneAndUpdate(ctx, bson.M{"user_id": profile.UserID}, update, opts).Decode(&saved)
	if err != nil {
		return nil, mapErr(err)
	}
	return &saved, nil
}

func (s *MongoFarmers) FindFarmerProfile(ctx context.Context, userID primitive.ObjectID) (*models.FarmerProfile, error) {
	var profile models.FarmerProfile
	if err := s.Collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile); err != nil {
		return nil, mapErr(err)
	}
	return &profile, nil
}
