package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeSubscribe    MessageType = "subscribe"
	MessageTypeUnsubscribe  MessageType = "unsubscribe"
	MessageTypePlaceBid     MessageType = "place_bid"
	MessageTypeGetAuction   MessageType = "get_auction"
	MessageTypeListAuctions MessageType = "list_auctions"
	MessageTypePing         MessageType = "ping"

	// Server to Client message types
	MessageTypeBidPlaced        MessageType = "bid_placed"
	MessageTypeAuctionEnded     MessageType = "auction_ended"
	MessageTypeAuctionCancelled MessageType = "auction_cancelled"
	MessageTypeAuctionUpdate    MessageType = "auction_update"
	MessageTypeError            MessageType = "error"
	MessageTypePong             MessageType = "pong"
)

type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorMessage builds an error reply. A too-low bid also reports the
// prevailing price.
func NewErrorMessage(err error, auctionID *uuid.UUID) *ServerMessage {
	text := err.Error()
	msg := &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &text,
		Timestamp: time.Now().Unix(),
	}

	var tooLow *shared.BidTooLowError
	if errors.As(err, &tooLow) {
		msg.Data = map[string]interface{}{"current_price": tooLow.CurrentPrice.String()}
	}
	return msg
}

// NewEventMessage converts a broadcast event into the message pushed to subscribers
func NewEventMessage(event outbound.Event) *ServerMessage {
	msgType := MessageTypeAuctionUpdate
	switch event.Type {
	case outbound.EventTypeBidPlaced:
		msgType = MessageTypeBidPlaced
	case outbound.EventTypeAuctionEnded:
		msgType = MessageTypeAuctionEnded
	case outbound.EventTypeAuctionCancelled:
		msgType = MessageTypeAuctionCancelled
	}

	auctionID := event.AuctionID
	return &ServerMessage{
		Type:      msgType,
		AuctionID: &auctionID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

// NewAuctionMessage creates an auction_update carrying the auction's state
func NewAuctionMessage(a *auction.Auction, now time.Time) *ServerMessage {
	msg := NewServerMessage(MessageTypeAuctionUpdate)
	msg.AuctionID = &a.ID
	msg.Data["auction"] = auctionData(a, now)
	return msg
}

func auctionData(a *auction.Auction, now time.Time) map[string]interface{} {
	data := map[string]interface{}{
		"auction_id":             a.ID.String(),
		"owner_id":               a.OwnerID.String(),
		"title":                  a.Listing.Title,
		"description":            a.Listing.Description,
		"image_ref":              a.Listing.ImageRef,
		"starting_price":         a.StartingPrice.String(),
		"current_price":          a.CurrentPrice.String(),
		"end_time":               a.EndTime.UTC().Format(time.RFC3339),
		"status":                 string(a.Status),
		"is_active":              a.IsActive(now),
		"time_remaining_seconds": int64(a.TimeRemaining(now).Seconds()),
		"bid_count":              len(a.Bids),
		"winner_id":              nil,
	}
	if a.WinnerID != nil {
		data["winner_id"] = a.WinnerID.String()
	}
	if highest := a.HighestBid(); highest != nil {
		data["highest_bid"] = bidData(*highest)
	}
	return data
}

func bidData(b bid.Bid) map[string]interface{} {
	return map[string]interface{}{
		"bid_id":    b.ID.String(),
		"bidder_id": b.BidderID.String(),
		"amount":    b.Amount.String(),
		"timestamp": b.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// ParseClientMessage parses a JSON message from client. Numbers are kept as
// json.Number so amounts reach the ledger without float rounding.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeGetAuction:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
	case MessageTypePlaceBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		if _, err := m.Amount(); err != nil {
			return err
		}
	case MessageTypeListAuctions:
		if _, err := m.intField("page"); err != nil {
			return err
		}
		if _, err := m.intField("page_size"); err != nil {
			return err
		}
	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}

// Amount returns the bid amount, given either as a JSON number or a string
func (m *ClientMessage) Amount() (decimal.Decimal, error) {
	switch v := m.Data["amount"].(type) {
	case json.Number:
		amount, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, shared.ErrInvalidAmount
		}
		return amount, nil
	case string:
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, shared.ErrInvalidAmount
		}
		return amount, nil
	default:
		return decimal.Zero, shared.ErrInvalidAmount
	}
}

// intField returns an optional integer field, zero when absent
func (m *ClientMessage) intField(name string) (int, error) {
	switch v := m.Data[name].(type) {
	case nil:
		return 0, nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, shared.ErrInvalidRequest
		}
		return n, nil
	default:
		return 0, shared.ErrInvalidRequest
	}
}

// statusFilter returns the optional auction status filter
func (m *ClientMessage) statusFilter() *auction.Status {
	raw, ok := m.Data["status"].(string)
	if !ok || raw == "" {
		return nil
	}
	status := auction.Status(raw)
	return &status
}
