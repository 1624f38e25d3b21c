package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auction-ledger-service/internal/config"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 100
)

var errClientStopped = errors.New("client is stopped")

type WsClient struct {
	id            string
	userID        uuid.UUID
	conn          *websocket.Conn
	sendChan      chan *ServerMessage
	ctx           context.Context
	cancel        context.CancelFunc
	handler       *WsHandler
	workerPool    *pond.WorkerPool
	subscriptions map[uuid.UUID]*outbound.Subscription
	subsMu        sync.Mutex
	stopped       bool
	mu            sync.Mutex
	logger        zerolog.Logger
}

type WsClientParams struct {
	UserID  uuid.UUID
	Conn    *websocket.Conn
	Handler *WsHandler
	Logger  zerolog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(params WsClientParams) *WsClient {
	ctx, cancel := context.WithCancel(context.Background())

	pool := pond.New(
		config.WSMaxWorkers,
		config.WSMaxCapacity,
		pond.Context(ctx),
		pond.Strategy(pond.Balanced()),
	)

	id := uuid.New().String()
	return &WsClient{
		id:            id,
		userID:        params.UserID,
		conn:          params.Conn,
		sendChan:      make(chan *ServerMessage, sendBufferSize),
		ctx:           ctx,
		cancel:        cancel,
		handler:       params.Handler,
		workerPool:    pool,
		subscriptions: make(map[uuid.UUID]*outbound.Subscription),
		logger: params.Logger.With().
			Str("client_id", id).
			Str("user_id", params.UserID.String()).
			Logger(),
	}
}

func (client *WsClient) Start() {
	go client.messageSender()
	go client.messageReceiver()
}

// Stop closes the connection and every subscription the client holds
func (client *WsClient) Stop() {
	client.mu.Lock()
	if client.stopped {
		client.mu.Unlock()
		return
	}
	client.stopped = true
	client.mu.Unlock()

	client.cancel()
	client.conn.Close()

	client.subsMu.Lock()
	for auctionID, sub := range client.subscriptions {
		if err := sub.Close(); err != nil {
			client.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to close subscription")
		}
		delete(client.subscriptions, auctionID)
	}
	client.subsMu.Unlock()

	client.workerPool.Stop()
}

// Send queues a message for the client
func (client *WsClient) Send(msg *ServerMessage) error {
	client.mu.Lock()
	stopped := client.stopped
	client.mu.Unlock()
	if stopped {
		return errClientStopped
	}

	select {
	case client.sendChan <- msg:
		return nil
	case <-client.ctx.Done():
		return errClientStopped
	default:
		// Channel is full, try to send with a timeout
		select {
		case client.sendChan <- msg:
			return nil
		case <-client.ctx.Done():
			return errClientStopped
		case <-time.After(100 * time.Millisecond):
			return fmt.Errorf("client send channel is full")
		}
	}
}

// subscribe attaches the client to an auction's events. It reports false
// when the client was already subscribed.
func (client *WsClient) subscribe(auctionID uuid.UUID, broadcaster outbound.Broadcaster) (bool, error) {
	client.subsMu.Lock()
	defer client.subsMu.Unlock()

	if _, exists := client.subscriptions[auctionID]; exists {
		return false, nil
	}

	sub, err := broadcaster.Subscribe(client.ctx, auctionID)
	if err != nil {
		return false, err
	}
	client.subscriptions[auctionID] = sub

	go client.forwardEvents(sub)
	return true, nil
}

// unsubscribe detaches the client from an auction. It reports false when the
// client was not subscribed.
func (client *WsClient) unsubscribe(auctionID uuid.UUID) bool {
	client.subsMu.Lock()
	sub, exists := client.subscriptions[auctionID]
	delete(client.subscriptions, auctionID)
	client.subsMu.Unlock()

	if !exists {
		return false
	}
	if err := sub.Close(); err != nil {
		client.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to close subscription")
	}
	return true
}

// forwardEvents pushes one subscription's events to the client until it ends
func (client *WsClient) forwardEvents(sub *outbound.Subscription) {
	for event := range sub.Events() {
		if err := client.Send(NewEventMessage(event)); err != nil {
			client.logger.Warn().
				Err(err).
				Str("auction_id", sub.AuctionID.String()).
				Str("event_type", string(event.Type)).
				Msg("Failed to send event to WebSocket client")
			continue
		}
		client.logger.Debug().
			Str("auction_id", sub.AuctionID.String()).
			Str("event_type", string(event.Type)).
			Msg("Sent event to WebSocket client")
	}
}

func (client *WsClient) messageSender() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-client.sendChan:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(msg); err != nil {
				client.logger.Error().Err(err).Msg("Failed to send message to client")
				client.cancel()
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.logger.Debug().Err(err).Msg("Failed to ping client")
				client.cancel()
				return
			}
		case <-client.ctx.Done():
			return
		}
	}
}

func (client *WsClient) messageReceiver() {
	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				client.logger.Error().Err(err).Msg("WebSocket read error for client")
			} else {
				client.logger.Info().Str("error", err.Error()).Msg("WebSocket connection closed for client")
			}
			// Cancel context to notify handler about disconnection
			client.cancel()
			return
		}
		client.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !client.workerPool.TrySubmit(func() {
			client.handleMessage(message)
		}) {
			client.logger.Warn().Msg("Client message queue full or stopped, dropping message")
		}
	}
}

func (client *WsClient) handleMessage(data []byte) {
	msg, err := ParseClientMessage(data)
	if err != nil {
		client.logger.Warn().Err(err).Msg("Invalid message from client")
		client.Send(NewErrorMessage(err, nil))
		return
	}

	if err := msg.Validate(); err != nil {
		client.logger.Warn().Err(err).Str("message_type", string(msg.Type)).Msg("Message validation failed")
		client.Send(NewErrorMessage(err, msg.AuctionID))
		return
	}

	if msg.Type == MessageTypePing {
		client.Send(NewServerMessage(MessageTypePong))
		return
	}

	if err := client.handler.HandleClientMessage(client, msg); err != nil {
		client.Send(NewErrorMessage(err, msg.AuctionID))
	}
}
