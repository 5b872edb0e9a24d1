package handler

import (
	"net/http"
	"time"

	"leadtracker_backend/internal/notification/sse"
	"leadtracker_backend/platform/config"
	"leadtracker_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	defaultKeepAlive = 25 * time.Second
	writeWait        = 10 * time.Second
	maxInboundBytes  = 512
)

// HTTPHandler exposes the hub over Server-Sent Events and WebSocket.
type HTTPHandler struct {
	hub       *sse.Service
	log       *logger.Logger
	upgrader  websocket.Upgrader
	keepAlive time.Duration
}

func NewHTTPHandler(hub *sse.Service, cfg config.HTTPConfig, log *logger.Logger) *HTTPHandler {
	h := &HTTPHandler{
		hub:       hub,
		log:       log,
		keepAlive: defaultKeepAlive,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg),
	}
	return h
}

// SetKeepAlive overrides the heartbeat interval of both streams.
func (h *HTTPHandler) SetKeepAlive(d time.Duration) {
	if d > 0 {
		h.keepAlive = d
	}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/events", h.Stream)
	rg.GET("/ws", h.WebSocket)
}

// Stream serves change events as text/event-stream until the client leaves.
func (h *HTTPHandler) Stream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe("sse")
	defer h.hub.Unsubscribe(sub)

	c.SSEvent("connected", gin.H{"subscriberId": sub.ID})
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"timestamp": time.Now().UTC()})
			c.Writer.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			c.SSEvent(string(event.Type), event)
			c.Writer.Flush()
		}
	}
}

// WebSocket upgrades the connection and pushes change events as JSON frames.
// Inbound frames are read only to notice the peer closing.
func (h *HTTPHandler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err, "clientIp", c.ClientIP())
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe("websocket")
	defer h.hub.Unsubscribe(sub)

	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		conn.SetReadLimit(maxInboundBytes)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, gin.H{"type": "connected", "subscriberId": sub.ID}); err != nil {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-peerGone:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case event, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			if err := h.write(conn, event); err != nil {
				h.log.DeliveryDropped(sub.ID.String(), string(event.Type), err.Error())
				return
			}
		}
	}
}

func (h *HTTPHandler) write(conn *websocket.Conn, payload interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(payload)
}

func originChecker(cfg config.HTTPConfig) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(cfg.GetCORSOrigins()))
	for _, origin := range cfg.GetCORSOrigins() {
		allowed[origin] = struct{}{}
	}
	allowAll := cfg.GetCORSAllowAll()

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowAll || origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
