package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/bulatminnakhmetov/canvas2image/internal/permission"
	"github.com/bulatminnakhmetov/canvas2image/internal/service/image"
)

// WSConn is the part of *websocket.Conn the bridge uses
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Handler serves the hybrid-app bridge over WebSocket
type Handler struct {
	service        image.ImageService
	upgrader       websocket.Upgrader
	maxMessageSize int64
}

// Client is one connected app. Each client owns its permission broker, so a
// grant given on one device never leaks to another.
type Client struct {
	conn    WSConn
	writeMu sync.Mutex
	broker  *permission.Broker
}

func NewHandler(service image.ImageService, maxMessageSize int64) *Handler {
	return &Handler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // hybrid shells load pages from file:// or custom schemes
			},
		},
		maxMessageSize: maxMessageSize,
	}
}

// @Summary      Bridge connection
// @Description  Upgrade to the WebSocket bridge. Clients below platform version 30 are asked for storage permission before the first save.
// @Tags         bridge
// @Param        sdk  query  int  false  "Client platform version"
// @Success      101
// @Failure      400  {string}  string  "Invalid sdk"
// @Failure      401  {string}  string  "Unauthorized"
// @Router       /bridge [get]
// @Security     BearerAuth
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	required := false
	if sdk := r.URL.Query().Get("sdk"); sdk != "" {
		v, err := strconv.Atoi(sdk)
		if err != nil {
			http.Error(w, "Invalid sdk", http.StatusBadRequest)
			return
		}
		required = permission.RequiredForPlatform(v)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("error upgrading to websocket")
		return
	}
	conn.SetReadLimit(h.maxMessageSize)

	h.serve(r.Context(), conn, required)
}

// serve runs the read loop of one client until the connection drops.
func (h *Handler) serve(ctx context.Context, conn WSConn, permissionRequired bool) {
	client := &Client{conn: conn}
	client.broker = permission.NewBroker(permissionRequired, client.promptPermission)
	logger := log.Ctx(ctx)

	defer func() {
		conn.Close()
		if pending := client.broker.Pending(); len(pending) > 0 {
			logger.Warn().Strs("request_ids", pending).Msg("bridge closed with unanswered permission requests")
		}
	}()

	logger.Info().Bool("permission_required", permissionRequired).Msg("bridge client connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket error")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn().Err(err).Msg("error parsing bridge message")
			continue
		}

		switch msg.Type {
		case MsgTypeExec:
			h.handleExec(ctx, client, msg)
		case MsgTypePermissionResult:
			if !client.broker.Deliver(msg.RequestID, msg.Granted) {
				logger.Warn().Str("request_id", msg.RequestID).Msg("permission result for unknown request")
			}
		default:
			logger.Warn().Str("type", msg.Type).Msg("unknown bridge message type")
		}
	}
}

func (h *Handler) handleExec(ctx context.Context, client *Client, msg InboundMessage) {
	if msg.Action != image.SaveAction {
		client.sendResult(ctx, msg.CallbackID, StatusError, ErrInvalidAction)
		return
	}

	req := image.ImageRequest{
		Payload: optString(msg.Args, 0),
		Format:  image.ParseFormat(optString(msg.Args, 1)),
	}

	h.service.SaveImage(ctx, req, client.broker, image.CallbackFuncs{
		OnSuccess: func(locator string) {
			client.sendResult(ctx, msg.CallbackID, StatusOK, locator)
		},
		OnError: func(err error) {
			client.sendResult(ctx, msg.CallbackID, StatusError, image.Message(err))
		},
	})
}

func (c *Client) promptPermission(_ context.Context, requestID string) error {
	return c.send(PermissionRequestMessage{
		Type:       MsgTypeRequestPermission,
		RequestID:  requestID,
		Permission: permission.WriteExternalStorage,
	})
}

func (c *Client) sendResult(ctx context.Context, callbackID, status, message string) {
	err := c.send(ResultMessage{
		Type:       MsgTypeResult,
		CallbackID: callbackID,
		Status:     status,
		Message:    message,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("callback_id", callbackID).Msg("error sending bridge result")
	}
}

// send serializes writes; gorilla connections allow one concurrent writer.
func (c *Client) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
