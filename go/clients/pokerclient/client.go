package pokerclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/planningpoker/go/clients"
	"github.com/mcdev12/planningpoker/go/internal/events"
	"github.com/mcdev12/planningpoker/go/internal/models"
	"github.com/mcdev12/planningpoker/go/internal/stats"
)

// ErrNotConnected is returned by actions issued before Connect
var ErrNotConnected = errors.New("not connected")

// RoomInfo is the REST view of a room
type RoomInfo struct {
	RoomID      string           `json:"roomId"`
	State       models.RoomState `json:"state"`
	Statistics  stats.Result     `json:"statistics"`
	Subscribers int              `json:"subscribers"`
}

// PokerClient talks to a planning poker server as one participant of one room
type PokerClient struct {
	*clients.BaseClient

	roomID string
	userID string
	view   *View
	dialer *websocket.Dialer

	writeMu sync.Mutex
	conn    *websocket.Conn
	updates chan struct{}
	done    chan struct{}
}

// NewPokerClient creates a client for baseURL (http or https)
func NewPokerClient(baseURL, roomID, userID, name string) *PokerClient {
	done := make(chan struct{})
	close(done)

	return &PokerClient{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
		roomID:     strings.ToUpper(strings.TrimSpace(roomID)),
		userID:     userID,
		view:       NewView(userID, name),
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		updates:    make(chan struct{}, 1),
		done:       done,
	}
}

// CreateRoom asks the server for a fresh room code
func CreateRoom(ctx context.Context, baseURL string) (string, error) {
	body, err := clients.NewBaseClient(strings.TrimRight(baseURL, "/")).Post(ctx, "/api/rooms", nil)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}

	var resp struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode create room response: %w", err)
	}
	return resp.RoomID, nil
}

// RoomInfo fetches the server's view of the room
func (c *PokerClient) RoomInfo(ctx context.Context) (RoomInfo, error) {
	body, err := c.Get(ctx, "/api/rooms/"+url.PathEscape(c.roomID))
	if err != nil {
		return RoomInfo{}, fmt.Errorf("get room: %w", err)
	}

	var info RoomInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return RoomInfo{}, fmt.Errorf("decode room: %w", err)
	}
	return info, nil
}

// View returns the reconciled local room state
func (c *PokerClient) View() *View {
	return c.view
}

// Updates signals whenever the local view changed. Signals coalesce.
func (c *PokerClient) Updates() <-chan struct{} {
	return c.updates
}

// Done is closed when the connection ends. Before Connect it is already closed.
func (c *PokerClient) Done() <-chan struct{} {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.done
}

// Connect opens the WebSocket subscription and starts reading from it
func (c *PokerClient) Connect(ctx context.Context) error {
	wsURL, err := c.socketURL()
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}

	done := make(chan struct{})
	c.writeMu.Lock()
	c.conn = conn
	c.done = done
	c.writeMu.Unlock()

	go c.readLoop(conn, done)

	log.Debug().Str("room_id", c.roomID).Str("user_id", c.userID).Msg("connected to room")
	return nil
}

// Close ends the subscription. Participant data stays in the room.
func (c *PokerClient) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Join takes a seat, or joins as an observer when seat is nil
func (c *PokerClient) Join(seat *int) error {
	s := models.NoSeat()
	if seat != nil {
		s = models.SeatAt(*seat)
	}
	return c.send(events.Join{Envelope: c.envelope(events.KindJoin), Username: c.view.Name(), SeatIndex: &s})
}

// Vote picks a card; nil withdraws the vote
func (c *PokerClient) Vote(card *string) error {
	return c.send(events.Vote{Envelope: c.envelope(events.KindVote), Vote: card})
}

// Reveal shows or hides the votes
func (c *PokerClient) Reveal(revealed bool) error {
	return c.send(events.Reveal{Envelope: c.envelope(events.KindReveal), Revealed: revealed})
}

// Reset starts a new round
func (c *PokerClient) Reset() error {
	return c.send(events.Reset{Envelope: c.envelope(events.KindReset)})
}

// MoveToObservers gives up the seat
func (c *PokerClient) MoveToObservers() error {
	return c.send(events.MoveToObservers{Envelope: c.envelope(events.KindMoveToObservers)})
}

// ChangeName renames the participant
func (c *PokerClient) ChangeName(name string) error {
	self, _ := c.view.Self()
	return c.send(events.ChangeName{Envelope: c.envelope(events.KindChangeName), Username: name, SeatIndex: self.SeatIndex})
}

// Leave removes the participant from the room for good
func (c *PokerClient) Leave() error {
	return c.send(events.Leave{Envelope: c.envelope(events.KindLeave), Permanent: true})
}

// RequestState asks the server for a full sync
func (c *PokerClient) RequestState() error {
	return c.write(events.RequestState{Envelope: c.envelope(events.KindRequestState)})
}

func (c *PokerClient) envelope(kind events.Kind) events.Envelope {
	return events.Envelope{Type: kind, UserID: c.userID, Timestamp: time.Now().UnixMilli()}
}

// send applies ev locally and then submits it
func (c *PokerClient) send(ev events.Event) error {
	c.writeMu.Lock()
	connected := c.conn != nil
	c.writeMu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	if _, isLeave := ev.(events.Leave); !isLeave {
		c.view.local(ev)
		c.notify()
	}
	return c.write(ev)
}

func (c *PokerClient) write(ev events.Event) error {
	data, err := events.Encode(ev)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", ev.Kind(), err)
	}
	return nil
}

func (c *PokerClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("room_id", c.roomID).Msg("room connection lost")
			}
			return
		}

		reaction, err := c.view.Apply(message)
		if err != nil {
			log.Warn().Err(err).Str("room_id", c.roomID).Msg("ignoring unreadable message")
			continue
		}
		c.notify()

		if reaction.RequestState {
			if err := c.RequestState(); err != nil {
				log.Warn().Err(err).Str("room_id", c.roomID).Msg("failed to request state")
			}
		}
	}
}

func (c *PokerClient) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *PokerClient) socketURL() (string, error) {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/room/" + url.PathEscape(c.roomID)
	u.RawQuery = url.Values{"userId": []string{c.userID}}.Encode()
	return u.String(), nil
}
