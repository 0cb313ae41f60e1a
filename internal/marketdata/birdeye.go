package marketdata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// BirdeyeStream maintains a price subscription websocket to Birdeye.
// Polling via DexScreener remains the fallback when the stream is down.
type BirdeyeStream struct {
	url    string
	apiKey string

	conn        *websocket.Conn
	mu          sync.RWMutex
	isConnected bool
	subscribed  map[string]bool // mint -> subscribed

	onPrice func(mint string, priceSOL, volumeUSD float64)

	stopCh chan struct{}
}

type birdeyeSubscribe struct {
	Type string `json:"type"`
	Data struct {
		QueryType string `json:"queryType"`
		ChartType string `json:"chartType"`
		Address   string `json:"address"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

type birdeyeEvent struct {
	Type string `json:"type"`
	Data struct {
		Address string  `json:"address"`
		Close   float64 `json:"c"`
		Volume  float64 `json:"v"`
	} `json:"data"`
}

// NewBirdeyeStream creates a disconnected stream client.
func NewBirdeyeStream(url, apiKey string) *BirdeyeStream {
	return &BirdeyeStream{
		url:        url,
		apiKey:     apiKey,
		subscribed: make(map[string]bool),
		stopCh:     make(chan struct{}),
	}
}

// OnPrice sets the tick callback.
func (c *BirdeyeStream) OnPrice(callback func(mint string, priceSOL, volumeUSD float64)) {
	c.onPrice = callback
}

// Connect establishes the websocket connection.
func (c *BirdeyeStream) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isConnected {
		return nil
	}

	header := http.Header{}
	header.Set("X-API-KEY", c.apiKey)
	header.Set("Origin", "https://birdeye.so")

	log.Info().Str("url", c.url).Msg("Connecting to Birdeye WebSocket...")

	conn, _, err := websocket.DefaultDialer.Dial(c.url+"?x-api-key="+c.apiKey, header)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.conn = conn
	c.isConnected = true

	go c.readMessages()

	log.Info().Msg("✅ Connected to Birdeye WebSocket")
	return nil
}

// Subscribe starts price updates for a mint.
func (c *BirdeyeStream) Subscribe(mint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected {
		return fmt.Errorf("not connected")
	}
	if c.subscribed[mint] {
		return nil
	}

	msg := birdeyeSubscribe{Type: "SUBSCRIBE_PRICE"}
	msg.Data.QueryType = "simple"
	msg.Data.ChartType = "1m"
	msg.Data.Address = mint
	msg.Data.Currency = "native"

	msgBytes, _ := json.Marshal(msg)
	if err := c.conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	c.subscribed[mint] = true
	log.Info().Str("mint", mint).Msg("📡 Subscribed to price stream")
	return nil
}

// Unsubscribe stops price updates for a mint.
func (c *BirdeyeStream) Unsubscribe(mint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected || !c.subscribed[mint] {
		return
	}
	msg := map[string]string{"type": "UNSUBSCRIBE_PRICE", "address": mint}
	msgBytes, _ := json.Marshal(msg)
	c.conn.WriteMessage(websocket.TextMessage, msgBytes)
	delete(c.subscribed, mint)
}

func (c *BirdeyeStream) readMessages() {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			log.Error().Err(err).Msg("Birdeye WebSocket read error")
			c.handleDisconnect()
			return
		}

		var event birdeyeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		if event.Type != "PRICE_DATA" || event.Data.Address == "" {
			continue
		}
		if c.onPrice != nil {
			c.onPrice(event.Data.Address, event.Data.Close, event.Data.Volume)
		}
	}
}

func (c *BirdeyeStream) handleDisconnect() {
	c.mu.Lock()
	c.isConnected = false
	resubscribe := make([]string, 0, len(c.subscribed))
	for mint := range c.subscribed {
		resubscribe = append(resubscribe, mint)
	}
	c.subscribed = make(map[string]bool)
	c.mu.Unlock()

	select {
	case <-c.stopCh:
		return
	default:
	}

	log.Warn().Msg("Birdeye WebSocket disconnected, reconnecting in 5s...")
	time.Sleep(5 * time.Second)

	if err := c.Connect(); err != nil {
		log.Error().Err(err).Msg("Birdeye reconnect failed")
		go c.handleDisconnect()
		return
	}
	for _, mint := range resubscribe {
		if err := c.Subscribe(mint); err != nil {
			log.Warn().Err(err).Str("mint", mint).Msg("resubscribe failed")
		}
	}
}

// Close shuts the stream down.
func (c *BirdeyeStream) Close() {
	close(c.stopCh)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}
	c.isConnected = false
}

// IsConnected returns connection status.
func (c *BirdeyeStream) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}
