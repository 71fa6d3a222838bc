package gateway

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/planningpoker/go/internal/room"
)

type testGateway struct {
	server   *httptest.Server
	registry *room.Registry
	clock    *clockwork.FakeClock
	client   *http.Client
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	registry := room.NewRegistry(room.WithClock(clockwork.NewFakeClock()))
	clock := clockwork.NewFakeClock()

	cfg := DefaultConfig()
	cfg.Clock = clock
	svc := NewService(cfg, registry)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(server.Close)
	t.Cleanup(svc.Stop)
	t.Cleanup(registry.Shutdown)

	return &testGateway{
		server:   server,
		registry: registry,
		clock:    clock,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *testGateway) post(t *testing.T, path, body string) (int, string) {
	t.Helper()
	resp, err := g.client.Post(g.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

type sseStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

func (g *testGateway) subscribe(t *testing.T, roomID, userID string) *sseStream {
	t.Helper()
	resp, err := g.client.Get(g.server.URL + "/api/room/" + roomID + "/events?userId=" + userID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	t.Cleanup(func() { resp.Body.Close() })
	return &sseStream{resp: resp, reader: bufio.NewReader(resp.Body)}
}

// line returns the next non-empty line of the stream
func (s *sseStream) line(t *testing.T) string {
	t.Helper()
	for {
		l, err := s.reader.ReadString('\n')
		require.NoError(t, err)
		l = strings.TrimRight(l, "\n")
		if l != "" {
			return l
		}
	}
}

// next returns the next data message of the stream
func (s *sseStream) next(t *testing.T) map[string]any {
	t.Helper()
	for {
		l := s.line(t)
		if !strings.HasPrefix(l, "data: ") {
			continue
		}
		var msg map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(l, "data: ")), &msg))
		return msg
	}
}

func participants(msg map[string]any) []any {
	return msg["state"].(map[string]any)["participants"].([]any)
}

func TestSSE_SubscribeRequiresUserID(t *testing.T) {
	g := newTestGateway(t)

	resp, err := g.client.Get(g.server.URL + "/api/room/ABCDEF/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, g.registry.Len())
}

func TestSSE_RoundTrip(t *testing.T) {
	req := require.New(t)
	g := newTestGateway(t)

	// Given Alice subscribed to a fresh room
	alice := g.subscribe(t, "abcdef", "u1")
	first := alice.next(t)
	req.Equal("syncState", first["type"])
	req.Empty(participants(first))

	// When she joins
	status, body := g.post(t, "/api/room/ABCDEF/events", `{"type":"join","userId":"u1","username":"Alice","seatIndex":0}`)
	req.Equal(http.StatusOK, status)
	req.Equal("OK", body)

	// Then her stream carries the new state
	msg := alice.next(t)
	req.Equal("syncState", msg["type"])
	req.Len(participants(msg), 1)

	// When Bob subscribes
	bob := g.subscribe(t, "ABCDEF", "u2")
	req.Len(participants(bob.next(t)), 1)

	// Then Alice is told he connected
	msg = alice.next(t)
	req.Equal("connected", msg["type"])
	req.Equal("u2", msg["userId"])

	// When Alice votes, Bob gets the delta
	status, _ = g.post(t, "/api/room/ABCDEF/events", `{"type":"vote","userId":"u1","vote":"5"}`)
	req.Equal(http.StatusOK, status)
	req.Equal(map[string]any{"type": "vote", "userId": "u1", "vote": "5"}, bob.next(t))

	// And the room view reflects it
	resp, err := g.client.Get(g.server.URL + "/api/rooms/abcdef")
	req.NoError(err)
	defer resp.Body.Close()
	var view RoomResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&view))
	req.Equal("ABCDEF", view.RoomID)
	req.Equal(2, view.Subscribers)
	req.Equal("5", *view.Statistics.Mode)
}

func TestSSE_Heartbeat(t *testing.T) {
	g := newTestGateway(t)
	stream := g.subscribe(t, "R", "u1")
	stream.next(t)

	g.clock.Advance(DefaultConnectionConfig().SSEHeartbeat)

	require.Equal(t, ": heartbeat", stream.line(t))
}

func TestSubmitEvent_Errors(t *testing.T) {
	g := newTestGateway(t)
	g.subscribe(t, "R", "u1").next(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "unknown room", path: "/api/room/NOPE/events", body: `{"type":"vote","userId":"u1","vote":"5"}`, status: http.StatusNotFound},
		{name: "malformed json", path: "/api/room/R/events", body: `{"type":`, status: http.StatusBadRequest},
		{name: "missing type", path: "/api/room/R/events", body: `{"userId":"u1"}`, status: http.StatusBadRequest},
		{name: "missing user", path: "/api/room/R/events", body: `{"type":"reset"}`, status: http.StatusBadRequest},
		{name: "card outside deck", path: "/api/room/R/events", body: `{"type":"vote","userId":"u1","vote":"7"}`, status: http.StatusBadRequest},
		{name: "unknown kind is accepted", path: "/api/room/R/events", body: `{"type":"wave","userId":"u1"}`, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := g.post(t, tt.path, tt.body)
			require.Equal(t, tt.status, status)
		})
	}
}

func TestRooms_CreateAndGet(t *testing.T) {
	req := require.New(t)
	g := newTestGateway(t)

	status, body := g.post(t, "/api/rooms", "")
	req.Equal(http.StatusCreated, status)

	var created CreateRoomResponse
	req.NoError(json.Unmarshal([]byte(body), &created))
	req.Len(created.RoomID, room.RoomCodeLength)

	resp, err := g.client.Get(g.server.URL + "/api/rooms/" + strings.ToLower(created.RoomID))
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	resp, err = g.client.Get(g.server.URL + "/api/rooms/MISSING")
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestDeck(t *testing.T) {
	g := newTestGateway(t)

	resp, err := g.client.Get(g.server.URL + "/api/deck")
	require.NoError(t, err)
	defer resp.Body.Close()

	var d struct {
		Name  string   `json:"name"`
		Cards []string `json:"cards"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	require.Contains(t, d.Cards, "?")
}

func dialRoom(t *testing.T, g *testGateway, roomID, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/room/" + roomID + "?userId=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_RoundTrip(t *testing.T) {
	req := require.New(t)
	g := newTestGateway(t)

	alice := dialRoom(t, g, "R", "u1")
	req.Equal("syncState", readWS(t, alice)["type"])

	// the frame claims another sender; the connection's participant wins
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","userId":"mallory","username":"Alice","seatIndex":0}`)))
	msg := readWS(t, alice)
	req.Equal("syncState", msg["type"])
	people := participants(msg)
	req.Len(people, 1)
	req.Equal("u1", people[0].(map[string]any)["id"])

	bob := dialRoom(t, g, "R", "u2")
	req.Len(participants(readWS(t, bob)), 1)
	msg = readWS(t, alice)
	req.Equal("connected", msg["type"])
	req.Equal("u2", msg["userId"])

	req.NoError(bob.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","username":"Bob","seatIndex":1}`)))
	req.Len(participants(readWS(t, alice)), 2)
	req.Len(participants(readWS(t, bob)), 2)

	// Bob votes over the socket; Alice gets the delta
	req.NoError(bob.WriteMessage(websocket.TextMessage, []byte(`{"type":"vote","vote":"8"}`)))
	req.Equal(map[string]any{"type": "vote", "userId": "u2", "vote": "8"}, readWS(t, alice))

	state, _, err := g.registry.Snapshot("R")
	req.NoError(err)
	p, ok := state.Participant("u2")
	req.True(ok)
	req.Equal("8", *p.Vote)
}

func TestWebSocket_ResubscribeClosesOldConnection(t *testing.T) {
	req := require.New(t)
	g := newTestGateway(t)

	first := dialRoom(t, g, "R", "u1")
	readWS(t, first)

	second := dialRoom(t, g, "R", "u1")
	req.Equal("syncState", readWS(t, second)["type"])

	// the superseded socket is closed by the server
	req.NoError(first.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, _, err := first.ReadMessage()
	req.Error(err)

	rm, ok := g.registry.Get("R")
	req.True(ok)
	req.Eventually(func() bool { return rm.Subscribers() == 1 && rm.Connected("u1") }, time.Second, 5*time.Millisecond)
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	g := newTestGateway(t)

	conn := dialRoom(t, g, "R", "u1")
	readWS(t, conn)
	rm, _ := g.registry.Get("R")
	require.Equal(t, 1, rm.Subscribers())

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return rm.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocket_RequiresUserID(t *testing.T) {
	g := newTestGateway(t)
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws/room/R"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestChannel_SendAfterClose(t *testing.T) {
	req := require.New(t)
	ch := NewChannel("r", "u1", 1, time.Now())
	req.Equal("R", ch.RoomID)

	req.NoError(ch.Send([]byte("a")))
	req.ErrorIs(ch.Send([]byte("b")), ErrSendBufferFull)

	ch.Close()
	ch.Close()
	req.ErrorIs(ch.Send([]byte("c")), room.ErrSubscriberClosed)

	// queued messages drain before the channel reports closed
	msg, ok := <-ch.Messages()
	req.True(ok)
	req.Equal([]byte("a"), msg)
	_, ok = <-ch.Messages()
	req.False(ok)
}

func TestOriginChecker(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/room/R", nil)
	r.Header.Set("Origin", "https://evil.example")

	require.True(t, OriginChecker([]string{"*"})(r))
	require.False(t, OriginChecker([]string{"https://poker.example"})(r))

	r.Header.Set("Origin", "https://poker.example")
	require.True(t, OriginChecker([]string{"https://poker.example"})(r))
}
