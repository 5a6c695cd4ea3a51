package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go-farmmarket/models"
	"go-farmmarket/store"
	"go-farmmarket/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requestTimeout = 10 * time.Second

// Broadcaster pushes real-time events to connected sockets
type Broadcaster interface {
	EmitToUser(userID primitive.ObjectID, t models.EventType, payload interface{})
	EmitToChat(chatID primitive.ObjectID, t models.EventType, payload interface{})
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// pathID parses the named mux variable as an ObjectID
func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(mux.Vars(r)[name])
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// writeStoreError maps a store error to 404 or 500
func writeStoreError(w http.ResponseWriter, notFound string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, notFound, nil)
		return
	}
	utils.WriteError(w, http.StatusInternalServerError, "Database error", err)
}
