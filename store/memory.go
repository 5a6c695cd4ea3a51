package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-farmmarket/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryDB keeps every collection in maps behind one lock
type memoryDB struct {
	mu sync.RWMutex

	users    map[primitive.ObjectID]models.User
	products map[primitive.ObjectID]models.Product
	orders   map[primitive.ObjectID]models.Order
	chats    map[primitive.ObjectID]models.Chat
	messages map[primitive.ObjectID]models.Message
	farmers  map[primitive.ObjectID]models.FarmerProfile // keyed by user id
}

// NewMemoryStore returns a Store that keeps everything in process memory
func NewMemoryStore() *Store {
	db := &memoryDB{
		users:    make(map[primitive.ObjectID]models.User),
		products: make(map[primitive.ObjectID]models.Product),
		orders:   make(map[primitive.ObjectID]models.Order),
		chats:    make(map[primitive.ObjectID]models.Chat),
		messages: make(map[primitive.ObjectID]models.Message),
		farmers:  make(map[primitive.ObjectID]models.FarmerProfile),
	}
	return &Store{
		Users:    &memoryUsers{db},
		Products: &memoryProducts{db},
		Orders:   &memoryOrders{db},
		Chats:    &memoryChats{db},
		Farmers:  &memoryFarmers{db},
	}
}

// ---- users ----

type memoryUsers struct{ db *memoryDB }

func (s *memoryUsers) CreateUser(ctx context.Context, user *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for _, u := range s.db.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.db.users[user.ID] = *user
	return nil
}

func (s *memoryUsers) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *memoryUsers) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, u := range s.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUsers) UpdateUser(ctx context.Context, id primitive.ObjectID, update models.UserUpdate) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Phone != nil {
		u.Phone = *update.Phone
	}
	if update.Address != nil {
		u.Address = *update.Address
	}
	if update.DeviceToken != nil {
		u.DeviceToken = *update.DeviceToken
	}
	u.UpdatedAt = time.Now().UTC()
	s.db.users[id] = u
	return &u, nil
}

func (s *memoryUsers) VerifyUser(ctx context.Context, token string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if token == "" {
		return nil, ErrNotFound
	}
	for id, u := range s.db.users {
		if u.VerificationToken != token {
			continue
		}
		u.IsVerified = true
		u.VerificationToken = ""
		u.UpdatedAt = time.Now().UTC()
		s.db.users[id] = u
		return &u, nil
	}
	return nil, ErrNotFound
}

// ---- products ----

type memoryProducts struct{ db *memoryDB }

func cloneProduct(p models.Product) models.Product {
	p.Images = append(p.Images[:0:0], p.Images...)
	p.Tags = append(p.Tags[:0:0], p.Tags...)
	p.Ratings = append(p.Ratings[:0:0], p.Ratings...)
	return p
}

func (s *memoryProducts) CreateProduct(ctx context.Context, product *models.Product) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	s.db.products[product.ID] = cloneProduct(*product)
	return nil
}

func (s *memoryProducts) FindProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = cloneProduct(p)
	return &p, nil
}

func matchProduct(p models.Product, f models.ProductFilter) bool {
	if !f.FarmerID.IsZero() && p.FarmerID != f.FarmerID {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Organic != nil && p.IsOrganic != *f.Organic {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Query)) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

func (s *memoryProducts) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	products := []models.Product{}
	for _, p := range s.db.products {
		if matchProduct(p, filter) {
			products = append(products, cloneProduct(p))
		}
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (s *memoryProducts) UpdateProduct(ctx context.Context, id primitive.ObjectID, update models.ProductUpdate) (*models.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	if update.Price != nil {
		p.Price = *update.Price
	}
	if update.Unit != nil {
		p.Unit = *update.Unit
	}
	if update.Category != nil {
		p.Category = *update.Category
	}
	if update.Images != nil {
		p.Images = update.Images
	}
	if update.Stock != nil {
		p.Stock = *update.Stock
	}
	if update.IsOrganic != nil {
		p.IsOrganic = *update.IsOrganic
	}
	if update.HarvestDate != nil {
		p.HarvestDate = update.HarvestDate
	}
	if update.Tags != nil {
		p.Tags = update.Tags
	}
	p.UpdatedAt = time.Now().UTC()
	s.db.products[id] = cloneProduct(p)
	p = cloneProduct(p)
	return &p, nil
}

func (s *memoryProducts) DeleteProduct(ctx context.Context, id primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.db.products, id)
	return nil
}

func (s *memoryProducts) SetProductRatings(ctx context.Context, id primitive.ObjectID, ratings []models.ProductRating, average float64) (*models.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Ratings = append(ratings[:0:0], ratings...)
	p.AverageRating = average
	p.UpdatedAt = time.Now().UTC()
	s.db.products[id] = p
	p = cloneProduct(p)
	return &p, nil
}

func (s *memoryProducts) AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.products[id]
	if !ok {
		return ErrNotFound
	}
	if p.Stock+delta < 0 {
		return ErrInsufficientStock
	}
	p.Stock += delta
	s.db.products[id] = p
	return nil
}

// ---- orders ----

type memoryOrders struct{ db *memoryDB }

func cloneOrder(o models.Order) models.Order {
	o.Items = append(o.Items[:0:0], o.Items...)
	if o.Tracking != nil {
		t := *o.Tracking
		o.Tracking = &t
	}
	if o.Rating != nil {
		r := *o.Rating
		o.Rating = &r
	}
	return o
}

func (s *memoryOrders) CreateOrder(ctx context.Context, order *models.Order) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.db.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (s *memoryOrders) FindOrderByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	o, ok := s.db.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *memoryOrders) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	orders := []models.Order{}
	for _, o := range s.db.orders {
		if !filter.BuyerID.IsZero() && o.BuyerID != filter.BuyerID {
			continue
		}
		if !filter.FarmerID.IsZero() && o.FarmerID != filter.FarmerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *memoryOrders) UpdateOrder(ctx context.Context, id primitive.ObjectID, update models.OrderUpdate) (*models.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	o, ok := s.db.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Status != nil {
		o.Status = *update.Status
	}
	if update.Tracking != nil {
		t := *update.Tracking
		o.Tracking = &t
	}
	if update.Rating != nil {
		r := *update.Rating
		o.Rating = &r
	}
	if update.RejectReason != nil {
		o.RejectReason = *update.RejectReason
	}
	if update.CancelReason != nil {
		o.CancelReason = *update.CancelReason
	}
	if update.AcceptedAt != nil {
		o.AcceptedAt = update.AcceptedAt
	}
	if update.ShippedAt != nil {
		o.ShippedAt = update.ShippedAt
	}
	if update.DeliveredAt != nil {
		o.DeliveredAt = update.DeliveredAt
	}
	if update.CancelledAt != nil {
		o.CancelledAt = update.CancelledAt
	}
	o.UpdatedAt = time.Now().UTC()
	s.db.orders[id] = o
	o = cloneOrder(o)
	return &o, nil
}

// ---- chats and messages ----

type memoryChats struct{ db *memoryDB }

func cloneChat(c models.Chat) models.Chat {
	c.Participants = append(c.Participants[:0:0], c.Participants...)
	return c
}

func (s *memoryChats) CreateChat(ctx context.Context, chat *models.Chat) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if chat.ID.IsZero() {
		chat.ID = primitive.NewObjectID()
	}
	s.db.chats[chat.ID] = cloneChat(*chat)
	return nil
}

func (s *memoryChats) FindChatByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	c, ok := s.db.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	c = cloneChat(c)
	return &c, nil
}

func (s *memoryChats) FindChatBetween(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, c := range s.db.chats {
		if len(c.Participants) == 2 && c.HasParticipant(a) && c.HasParticipant(b) {
			c = cloneChat(c)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryChats) ListChatsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	chats := []models.Chat{}
	for _, c := range s.db.chats {
		if c.HasParticipant(userID) {
			chats = append(chats, cloneChat(c))
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		a, b := chats[i].LastMessageAt, chats[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	return chats, nil
}

func (s *memoryChats) UpdateChatSettings(ctx context.Context, id primitive.ObjectID, settings models.ChatSettings) (*models.Chat, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	if settings.IsMuted != nil {
		c.IsMuted = *settings.IsMuted
	}
	if settings.IsArchived != nil {
		c.IsArchived = *settings.IsArchived
	}
	if settings.IsBlocked != nil {
		c.IsBlocked = *settings.IsBlocked
	}
	c.UpdatedAt = time.Now().UTC()
	s.db.chats[id] = c
	c = cloneChat(c)
	return &c, nil
}

func (s *memoryChats) TouchLastMessage(ctx context.Context, chatID primitive.ObjectID, msg *models.Message) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.chats[chatID]
	if !ok {
		return ErrNotFound
	}
	id := msg.ID
	at := msg.CreatedAt
	c.LastMessageID = &id
	c.LastMessageText = msg.Text
	c.LastMessageAt = &at
	c.UnreadCount++
	c.UpdatedAt = at
	s.db.chats[chatID] = c
	return nil
}

func (s *memoryChats) ResetUnread(ctx context.Context, chatID primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	c, ok := s.db.chats[chatID]
	if !ok {
		return ErrNotFound
	}
	c.UnreadCount = 0
	s.db.chats[chatID] = c
	return nil
}

func (s *memoryChats) InsertMessage(ctx context.Context, msg *models.Message) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	s.db.messages[msg.ID] = *msg
	return nil
}

func (s *memoryChats) FindMessageByID(ctx context.Context, chatID, id primitive.ObjectID) (*models.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	m, ok := s.db.messages[id]
	if !ok || m.ChatID != chatID {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *memoryChats) ListMessages(ctx context.Context, chatID primitive.ObjectID, before time.Time, limit int) ([]models.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	msgs := []models.Message{}
	for _, m := range s.db.messages {
		if m.ChatID != chatID {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		msgs = append(msgs, m)
	}
	// newest first to apply the limit, then flip to oldest first
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *memoryChats) MarkMessagesRead(ctx context.Context, chatID primitive.ObjectID, ids []primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var modified int64
	now := time.Now().UTC()
	for _, id := range ids {
		m, ok := s.db.messages[id]
		if !ok || m.ChatID != chatID || m.IsRead {
			continue
		}
		m.IsRead = true
		m.UpdatedAt = now
		s.db.messages[id] = m
		modified++
	}
	return modified, nil
}

func (s *memoryChats) SearchMessages(ctx context.Context, chatID primitive.ObjectID, query string) ([]models.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	q := strings.ToLower(query)
	msgs := []models.Message{}
	for _, m := range s.db.messages {
		if m.ChatID == chatID && strings.Contains(strings.ToLower(m.Text), q) {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (s *memoryChats) DeleteMessage(ctx context.Context, chatID, id primitive.ObjectID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	m, ok := s.db.messages[id]
	if !ok || m.ChatID != chatID {
		return ErrNotFound
	}
	delete(s.db.messages, id)
	return nil
}

// ---- farmer profiles ----

type memoryFarmers struct{ db *memoryDB }

func (s *memoryFarmers) UpsertFarmerProfile(ctx context.Context, profile *models.FarmerProfile) (*models.FarmerProfile, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := time.Now().UTC()
	p := *profile
	if existing, ok := s.db.farmers[p.UserID]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = primitive.NewObjectID()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Certifications = append([]string(nil), p.Certifications...)
	s.db.farmers[p.UserID] = p
	return &p, nil
}

func (s *memoryFarmers) FindFarmerProfile(ctx context.Context, userID primitive.ObjectID) (*models.FarmerProfile, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.farmers[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}
