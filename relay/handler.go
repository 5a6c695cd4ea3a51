package relay

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"go-farmmarket/middleware"
	"go-farmmarket/models"
	"go-farmmarket/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const authWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades the request and runs the socket until it closes. The
// bearer token comes from the Authorization header, the token query
// parameter, or an auth frame sent first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("relay: upgrade: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	claims, err := handshake(conn, r)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		conn.Close()
		return
	}

	c := newClient(h, conn, uuid.NewString(), userID, models.Role(claims.Role))
	h.Join(c, UserRoom(userID))
	c.reply(models.EventConnected, models.ConnectedEvent{UserID: userID.Hex(), ClientID: c.id})

	go c.writePump()
	c.readPump()
}

func handshake(conn *websocket.Conn, r *http.Request) (*utils.Claims, error) {
	if token, ok := middleware.BearerToken(r); ok {
		return utils.ParseJWT(token)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return utils.ParseJWT(token)
	}

	conn.SetReadDeadline(time.Now().Add(authWait))
	defer conn.SetReadDeadline(time.Time{})

	var env models.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return nil, err
	}
	if env.Type != models.EventAuth {
		return nil, errors.New("first frame must be auth")
	}
	var auth models.AuthPayload
	if err := json.Unmarshal(env.Data, &auth); err != nil {
		return nil, err
	}
	return utils.ParseJWT(auth.Token)
}
