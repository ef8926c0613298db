package chat_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/livechat/internal/chat"
	"github.com/Tyrowin/livechat/internal/mocks"
)

var (
	alice = chat.Identity{ID: "u-alice", Name: "Alice"}
	bob   = chat.Identity{ID: "u-bob", Name: "Bob"}
)

// tokenVerifier accepts the tokens it knows about.
type tokenVerifier map[string]chat.Identity

func (v tokenVerifier) Verify(_ context.Context, credential string) (chat.Identity, error) {
	identity, ok := v[credential]
	if !ok {
		return chat.Identity{}, chat.ErrInvalidToken
	}
	return identity, nil
}

func newEngine(t *testing.T, cfg chat.Config, opts ...chat.Option) *chat.Engine {
	t.Helper()
	verifier := tokenVerifier{"alice": alice, "bob": bob}
	opts = append([]chat.Option{chat.WithLogger(logs.GetLoggerFromLevel(slog.LevelDebug))}, opts...)
	engine := chat.NewEngine(verifier, cfg, opts...)
	engine.Start()
	t.Cleanup(engine.Stop)
	return engine
}

func join(t *testing.T, engine *chat.Engine, token string) *chat.Session {
	t.Helper()
	s, err := engine.Connect(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, engine.Join(s))
	return s
}

func nextEvent(t *testing.T, s *chat.Session) chat.Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "event queue closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return chat.Event{}
}

func expectEvent(t *testing.T, s *chat.Session, kind chat.EventKind) chat.Event {
	t.Helper()
	ev := nextEvent(t, s)
	require.Equal(t, kind, ev.Kind)
	return ev
}

func expectNoEvent(t *testing.T, s *chat.Session) {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if ok {
			t.Fatalf("unexpected %s event: %+v", ev.Kind, ev.Data)
		}
	default:
	}
}

func drain(s *chat.Session) {
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func TestEngine_Connect_Without_Credential(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockVerifier(ctrl)
	engine := chat.NewEngine(verifier, chat.DefaultConfig())
	engine.Start()
	defer engine.Stop()

	// The verifier is never consulted for an empty credential
	verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Times(0)

	s, err := engine.Connect(context.Background(), "")

	req.ErrorIs(err, chat.ErrAuthRequired)
	req.Nil(s)
	req.Zero(engine.Count())
}

func TestEngine_Connect_With_Rejected_Credential(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockVerifier(ctrl)
	engine := chat.NewEngine(verifier, chat.DefaultConfig())
	engine.Start()
	defer engine.Stop()

	t.Run("invalid token is reported as is", func(t *testing.T) {
		req := require.New(t)
		verifier.EXPECT().
			Verify(gomock.Any(), "forged").
			Return(chat.Identity{}, fmt.Errorf("%w: signature mismatch", chat.ErrInvalidToken)).
			Times(1)

		s, err := engine.Connect(context.Background(), "forged")

		req.ErrorIs(err, chat.ErrInvalidToken)
		req.Nil(s)
	})

	t.Run("unexpected verifier failure becomes invalid token", func(t *testing.T) {
		req := require.New(t)
		verifier.EXPECT().
			Verify(gomock.Any(), "garbage").
			Return(chat.Identity{}, errors.New("malformed")).
			Times(1)

		_, err := engine.Connect(context.Background(), "garbage")

		req.ErrorIs(err, chat.ErrInvalidToken)
	})

	t.Run("identity without id is refused", func(t *testing.T) {
		req := require.New(t)
		verifier.EXPECT().
			Verify(gomock.Any(), "anonymous").
			Return(chat.Identity{Name: "ghost"}, nil).
			Times(1)

		_, err := engine.Connect(context.Background(), "anonymous")

		req.ErrorIs(err, chat.ErrInvalidToken)
	})

	require.Zero(t, engine.Count())
	require.Empty(t, engine.Online())
}

func TestEngine_Rejected_Connection_Never_Sees_The_Room(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.DefaultConfig())
	a := join(t, engine, "alice")
	drain(a)

	s, err := engine.Connect(context.Background(), "mallory")

	req.ErrorIs(err, chat.ErrInvalidToken)
	req.Nil(s)
	req.Equal([]chat.Identity{alice}, engine.Online())
	expectNoEvent(t, a)
}

func TestEngine_Join_Sends_Presence_Then_Snapshot(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.DefaultConfig())

	s, err := engine.Connect(context.Background(), "alice")
	req.NoError(err)
	req.Equal(chat.StateAuthenticated, s.State())

	// Authenticated but not joined: invisible and silent
	req.Zero(engine.Count())
	expectNoEvent(t, s)

	req.NoError(engine.Join(s))
	req.Equal(chat.StateJoined, s.State())
	req.NotEmpty(s.ID())

	req.Equal(chat.Presence{UserID: alice.ID, Name: alice.Name}, expectEvent(t, s, chat.EventUserOnline).Data)
	req.Equal(1, expectEvent(t, s, chat.EventOnlineCount).Data)
	welcome := expectEvent(t, s, chat.EventWelcome).Data.(chat.Welcome)
	req.Equal("Welcome to the chat, Alice!", welcome.Message)
	req.Equal([]chat.Message{}, expectEvent(t, s, chat.EventChatHistory).Data)
	expectNoEvent(t, s)
}

func TestEngine_Join_Snapshot_Holds_Last_Twenty_Messages(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.Config{QueueSize: 128})
	a := join(t, engine, "alice")
	for i := 1; i <= 25; i++ {
		_, err := engine.SendMessage(a, fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	b := join(t, engine, "bob")
	expectEvent(t, b, chat.EventUserOnline)
	expectEvent(t, b, chat.EventOnlineCount)
	expectEvent(t, b, chat.EventWelcome)
	history := expectEvent(t, b, chat.EventChatHistory).Data.([]chat.Message)

	req.Len(history, chat.DefaultJoinHistory)
	req.Equal("message 6", history[0].Text)
	req.Equal("message 25", history[19].Text)
}

func TestEngine_Two_Users_Scenario(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.DefaultConfig())

	// User A joins: 0 -> 1
	a := join(t, engine, "alice")
	req.Equal(1, engine.Count())
	drain(a)

	// User B joins: 1 -> 2
	b := join(t, engine, "bob")
	req.Equal(2, engine.Count())
	req.Equal(chat.Presence{UserID: bob.ID, Name: bob.Name}, expectEvent(t, a, chat.EventUserOnline).Data)
	req.Equal(2, expectEvent(t, a, chat.EventOnlineCount).Data)
	req.Equal(chat.Presence{UserID: bob.ID, Name: bob.Name, Message: "Bob joined the chat"},
		expectEvent(t, a, chat.EventUserJoined).Data)
	drain(b)

	// A sends "hi": both receive it
	sent, err := engine.SendMessage(a, "hi")
	req.NoError(err)
	for _, s := range []*chat.Session{a, b} {
		msg := expectEvent(t, s, chat.EventNewMessage).Data.(chat.Message)
		req.Equal(sent, msg)
		req.Equal("hi", msg.Text)
		req.Equal(alice.ID, msg.AuthorID)
		req.Equal(alice.Name, msg.AuthorName)
	}

	// B disconnects: A sees the departure and the new count
	engine.Disconnect(b)
	req.Equal(chat.StateDisconnected, b.State())
	req.Equal(chat.Presence{UserID: bob.ID, Name: bob.Name}, expectEvent(t, a, chat.EventUserOffline).Data)
	req.Equal(1, expectEvent(t, a, chat.EventOnlineCount).Data)
	expectNoEvent(t, a)
	req.Equal([]chat.Identity{alice}, engine.Online())
}

func TestEngine_Typing_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.Config{TypingTimeout: 0})
	a := join(t, engine, "alice")
	b := join(t, engine, "bob")
	drain(a)
	drain(b)

	req.NoError(engine.SetTyping(a, true))
	req.Equal(chat.Typing{UserID: alice.ID, Name: alice.Name, IsTyping: true}, expectEvent(t, b, chat.EventUserTyping).Data)
	expectNoEvent(t, a)

	req.NoError(engine.SetTyping(a, false))
	req.Equal(chat.Typing{UserID: alice.ID, Name: alice.Name}, expectEvent(t, b, chat.EventUserTyping).Data)
	expectNoEvent(t, a)
}

func TestEngine_Typing_Expires_Without_Update(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.Config{TypingTimeout: 20 * time.Millisecond})
	a := join(t, engine, "alice")
	b := join(t, engine, "bob")
	drain(a)
	drain(b)

	req.NoError(engine.SetTyping(a, true))
	req.True(expectEvent(t, b, chat.EventUserTyping).Data.(chat.Typing).IsTyping)

	// The stop arrives from the server once the timeout elapses
	req.False(expectEvent(t, b, chat.EventUserTyping).Data.(chat.Typing).IsTyping)
	expectNoEvent(t, a)
}

func TestEngine_Typing_User_Leaving_Clears_Indicator(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.Config{TypingTimeout: 0})
	a := join(t, engine, "alice")
	b := join(t, engine, "bob")
	drain(a)
	drain(b)

	req.NoError(engine.SetTyping(b, true))
	expectEvent(t, a, chat.EventUserTyping)

	engine.Disconnect(b)

	req.False(expectEvent(t, a, chat.EventUserTyping).Data.(chat.Typing).IsTyping)
	expectEvent(t, a, chat.EventUserOffline)
	expectEvent(t, a, chat.EventOnlineCount)
}

func TestEngine_Requests_Before_Join(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.DefaultConfig())
	s, err := engine.Connect(context.Background(), "alice")
	req.NoError(err)

	_, err = engine.SendMessage(s, "too early")
	req.ErrorIs(err, chat.ErrNotJoined)
	req.ErrorIs(engine.SetTyping(s, true), chat.ErrNotJoined)
	req.Empty(engine.RecentHistory(0))

	req.NoError(engine.Join(s))
	req.ErrorIs(engine.Join(s), chat.ErrAlreadyJoined)
}

func TestEngine_Disconnect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.DefaultConfig())
	a := join(t, engine, "alice")
	b := join(t, engine, "bob")
	drain(a)

	engine.Disconnect(b)
	expectEvent(t, a, chat.EventUserOffline)
	expectEvent(t, a, chat.EventOnlineCount)

	// Second signal: no broadcast, no panic on the closed queue
	engine.Disconnect(b)
	expectNoEvent(t, a)
	req.Equal(1, engine.Count())
	req.ErrorIs(engine.Join(b), chat.ErrUnknownConnection)
}

func TestEngine_Disconnect_Before_Join_Is_Silent(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.DefaultConfig())
	a := join(t, engine, "alice")
	drain(a)

	s, err := engine.Connect(context.Background(), "bob")
	req.NoError(err)
	engine.Disconnect(s)

	_, open := <-s.Events()
	req.False(open)
	expectNoEvent(t, a)
	req.Equal(1, engine.Count())
}

func TestEngine_History_Keeps_Last_Thousand_Messages(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.Config{QueueSize: 2048})
	a := join(t, engine, "alice")

	for i := 1; i <= 1005; i++ {
		_, err := engine.SendMessage(a, fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	history := engine.RecentHistory(1000)
	req.Len(history, 1000)
	for i, m := range history {
		req.Equal(fmt.Sprintf("message %d", i+6), m.Text)
		if i > 0 {
			req.Less(history[i-1].ID, m.ID)
			req.False(m.CreatedAt.Before(history[i-1].CreatedAt))
		}
	}
	req.Len(engine.RecentHistory(0), chat.DefaultHistoryLimit)
	req.Len(engine.RecentHistory(5000), 1000)
}

func TestEngine_Timestamps_Never_Go_Backwards(t *testing.T) {
	req := require.New(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Duration{0, 5 * time.Second, -time.Minute, 10 * time.Second}
	var mu sync.Mutex
	i := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		d := ticks[i%len(ticks)]
		i++
		return base.Add(d)
	}
	engine := newEngine(t, chat.Config{QueueSize: 64}, chat.WithClock(clock))
	a := join(t, engine, "alice")

	var last time.Time
	for n := 0; n < 8; n++ {
		m, err := engine.SendMessage(a, "tick")
		req.NoError(err)
		req.False(m.CreatedAt.Before(last))
		last = m.CreatedAt
	}
}

func TestEngine_Slow_Receiver_Is_Disconnected(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.Config{QueueSize: 4})
	a := join(t, engine, "alice")
	drain(a)
	b := join(t, engine, "bob") // never read: its four join events fill the queue
	drain(a)

	_, err := engine.SendMessage(a, "anyone there?")
	req.NoError(err)

	expectEvent(t, a, chat.EventNewMessage)
	req.Equal(chat.Presence{UserID: bob.ID, Name: bob.Name}, expectEvent(t, a, chat.EventUserOffline).Data)
	req.Equal(1, expectEvent(t, a, chat.EventOnlineCount).Data)
	req.Equal(chat.StateDisconnected, b.State())
	req.Equal(1, engine.Count())

	// The queued events are still readable, then the queue is closed
	for range b.Events() {
	}
}

func TestEngine_Presence_Deduplicates_Identities(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.DefaultConfig())
	join(t, engine, "alice")
	join(t, engine, "alice")
	join(t, engine, "bob")

	req.Equal(3, engine.Count())
	req.Len(engine.Online(), 3)
	req.Equal([]chat.Identity{alice, bob}, engine.Presence())
}

func TestEngine_Stop_Closes_Every_Session(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.DefaultConfig())
	a := join(t, engine, "alice")
	pending, err := engine.Connect(context.Background(), "bob")
	req.NoError(err)

	engine.Stop()

	for _, s := range []*chat.Session{a, pending} {
		req.Equal(chat.StateDisconnected, s.State())
		for range s.Events() {
		}
	}
	req.Zero(engine.Count())

	_, err = engine.Connect(context.Background(), "alice")
	req.ErrorIs(err, chat.ErrNotRunning)
}

func TestEngine_Concurrent_Sessions(t *testing.T) {
	req := require.New(t)
	engine := newEngine(t, chat.Config{QueueSize: 1024})
	const clients, perClient = 20, 10

	var wg sync.WaitGroup
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := engine.Connect(context.Background(), "alice")
			if err != nil {
				t.Errorf("connect: %v", err)
				return
			}
			done := make(chan struct{})
			go func() {
				defer close(done)
				for range s.Events() {
				}
			}()
			if err := engine.Join(s); err != nil {
				t.Errorf("join: %v", err)
			}
			for m := 0; m < perClient; m++ {
				if _, err := engine.SendMessage(s, "hello"); err != nil {
					t.Errorf("send: %v", err)
				}
				_ = engine.SetTyping(s, m%2 == 0)
			}
			engine.Disconnect(s)
			<-done
		}()
	}
	wg.Wait()

	req.Zero(engine.Count())
	req.Len(engine.RecentHistory(clients*perClient), clients*perClient)
}
