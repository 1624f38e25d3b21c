package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-ledger-service/internal/adapters/memory"
	"auction-ledger-service/internal/app"
	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	server  *httptest.Server
	handler *WsHandler
	store   *memory.AuctionStore
	auction *auction.Auction
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	store := memory.NewAuctionStore()
	broadcaster := memory.NewBroadcaster(memory.BroadcasterParams{BufferSize: 16, Logger: zerolog.Nop()})
	ledger := app.NewLedger(app.LedgerParams{AuctionRepo: store, Publisher: broadcaster, Logger: zerolog.Nop()})
	service := app.NewAuctionService(app.AuctionServiceParams{AuctionRepo: store, Publisher: broadcaster, Logger: zerolog.Nop()})

	now := time.Now().UTC()
	listing := shared.Listing{
		Title:       "Brass telescope",
		Description: "Victorian brass telescope on a tripod",
		ImageRef:    "https://example.com/telescope.jpg",
	}
	a := auction.New(uuid.New(), listing, decimal.NewFromInt(100), now.Add(time.Hour), now)
	require.NoError(t, store.Create(context.Background(), a))

	handler := NewHandler(WsHandlerParams{
		AuctionService: service,
		Ledger:         ledger,
		Broadcaster:    broadcaster,
		Logger:         zerolog.Nop(),
	})
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(func() {
		handler.CloseAll()
		server.Close()
	})

	return &wsFixture{server: server, handler: handler, store: store, auction: a}
}

func (f *wsFixture) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?user_id=" + userID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func receive(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWsHandler_RejectsMissingUser(t *testing.T) {
	f := newWSFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWsHandler_Ping(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, uuid.New())

	send(t, conn, map[string]interface{}{"type": "ping"})
	require.Equal(t, MessageTypePong, receive(t, conn).Type)
}

func TestWsHandler_BidReachesSubscribersOnce(t *testing.T) {
	f := newWSFixture(t)
	watcher := f.dial(t, uuid.New())
	bidderID := uuid.New()
	bidder := f.dial(t, bidderID)

	send(t, watcher, map[string]interface{}{"type": "subscribe", "auction_id": f.auction.ID.String()})
	subscribed := receive(t, watcher)
	require.Equal(t, MessageTypeAuctionUpdate, subscribed.Type)
	require.Equal(t, "subscribed", subscribed.Data["status"])

	send(t, bidder, map[string]interface{}{
		"type":       "place_bid",
		"auction_id": f.auction.ID.String(),
		"data":       map[string]interface{}{"amount": "125.50"},
	})

	ack := receive(t, bidder)
	require.Equal(t, MessageTypeAuctionUpdate, ack.Type)
	require.Equal(t, "bid_accepted", ack.Data["status"])
	require.Equal(t, "125.5", ack.Data["current_price"])

	event := receive(t, watcher)
	require.Equal(t, MessageTypeBidPlaced, event.Type)
	require.Equal(t, bidderID.String(), event.Data["bidder_id"])
	require.Equal(t, "125.5", event.Data["current_price"])

	// nothing else is queued for the watcher
	send(t, watcher, map[string]interface{}{"type": "ping"})
	require.Equal(t, MessageTypePong, receive(t, watcher).Type)
}

func TestWsHandler_BidTooLow(t *testing.T) {
	f := newWSFixture(t)
	bidder := f.dial(t, uuid.New())

	send(t, bidder, map[string]interface{}{
		"type":       "place_bid",
		"auction_id": f.auction.ID.String(),
		"data":       map[string]interface{}{"amount": 90},
	})

	msg := receive(t, bidder)
	require.Equal(t, MessageTypeError, msg.Type)
	require.Equal(t, "100", msg.Data["current_price"])
}

func TestWsHandler_OwnerCannotBid(t *testing.T) {
	f := newWSFixture(t)
	owner := f.dial(t, f.auction.OwnerID)

	send(t, owner, map[string]interface{}{
		"type":       "place_bid",
		"auction_id": f.auction.ID.String(),
		"data":       map[string]interface{}{"amount": 500},
	})

	msg := receive(t, owner)
	require.Equal(t, MessageTypeError, msg.Type)
	require.Equal(t, shared.ErrSelfBidForbidden.Error(), *msg.Error)
}

func TestWsHandler_SubscribeUnknownAuction(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, uuid.New())

	send(t, conn, map[string]interface{}{"type": "subscribe", "auction_id": uuid.NewString()})
	msg := receive(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)
	require.Equal(t, shared.ErrAuctionNotFound.Error(), *msg.Error)
}

func TestWsHandler_UnsubscribeStopsEvents(t *testing.T) {
	f := newWSFixture(t)
	watcher := f.dial(t, uuid.New())
	bidder := f.dial(t, uuid.New())
	auctionID := f.auction.ID.String()

	send(t, watcher, map[string]interface{}{"type": "subscribe", "auction_id": auctionID})
	require.Equal(t, "subscribed", receive(t, watcher).Data["status"])

	send(t, watcher, map[string]interface{}{"type": "unsubscribe", "auction_id": auctionID})
	require.Equal(t, "unsubscribed", receive(t, watcher).Data["status"])

	send(t, bidder, map[string]interface{}{
		"type":       "place_bid",
		"auction_id": auctionID,
		"data":       map[string]interface{}{"amount": "200"},
	})
	require.Equal(t, "bid_accepted", receive(t, bidder).Data["status"])

	send(t, watcher, map[string]interface{}{"type": "ping"})
	require.Equal(t, MessageTypePong, receive(t, watcher).Type)
}

func TestWsHandler_GetAndListAuctions(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, uuid.New())

	send(t, conn, map[string]interface{}{"type": "get_auction", "auction_id": f.auction.ID.String()})
	msg := receive(t, conn)
	require.Equal(t, MessageTypeAuctionUpdate, msg.Type)
	data := msg.Data["auction"].(map[string]interface{})
	require.Equal(t, "100", data["current_price"])
	require.Equal(t, "active", data["status"])

	send(t, conn, map[string]interface{}{"type": "list_auctions", "data": map[string]interface{}{"status": "active"}})
	msg = receive(t, conn)
	require.Equal(t, float64(1), msg.Data["count"])
}

func TestWsHandler_DisconnectReleasesClient(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, uuid.New())

	send(t, conn, map[string]interface{}{"type": "subscribe", "auction_id": f.auction.ID.String()})
	receive(t, conn)
	require.Equal(t, 1, f.handler.GetConnectedClients())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return f.handler.GetConnectedClients() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
