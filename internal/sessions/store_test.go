package sessions

import (
	"context"
	"testing"
	"time"

	"voicero/internal/apperr"
	"voicero/internal/db/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shop = "demo.myshopify.com"

func newTestStore(t *testing.T) (*Store, *dbtest.Memory, *time.Time) {
	t.Helper()
	mem := dbtest.NewMemory()
	s := NewStore(mem, "sessions")
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	return s, mem, &clock
}

func TestCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, mem, _ := newTestStore(t)

	first, err := s.Create(ctx, shop, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, first.WindowState)
	require.Len(t, first.Threads, 1)

	_, err = s.AppendMessage(ctx, shop, "browser-1", RoleUser, "hi", "")
	require.NoError(t, err)

	again, err := s.Create(ctx, shop, "browser-1")
	require.NoError(t, err)
	assert.Equal(t, first.Threads[0].ID, again.Threads[0].ID)
	assert.Len(t, again.CurrentThread().Messages, 1)
	assert.Equal(t, 1, mem.Len("sessions"))

	generated, err := s.Create(ctx, shop, "")
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
}

func TestGetIsScopedToShop(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	_, err := s.Create(ctx, shop, "browser-1")
	require.NoError(t, err)

	_, err = s.Get(ctx, "other.myshopify.com", "browser-1")
	var nf *apperr.NotFound
	require.ErrorAs(t, err, &nf)

	_, err = s.Get(ctx, shop, "missing")
	require.ErrorAs(t, err, &nf)
}

func TestAppendMessageBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	_, err := s.Create(ctx, shop, "b")
	require.NoError(t, err)

	_, err = s.AppendMessage(ctx, shop, "b", RoleUser, "where is my order?", "")
	require.NoError(t, err)
	sess, err := s.AppendMessage(ctx, shop, "b", RoleAssistant, "Let me check.", "order_details")
	require.NoError(t, err)

	assert.Equal(t, 3, sess.Version)
	msgs := sess.CurrentThread().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "order_details", msgs[1].Action)
}

func TestAppendMessageTrimsThread(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	_, err := s.Create(ctx, shop, "b")
	require.NoError(t, err)

	var sess *Session
	for i := 0; i < maxMessages+5; i++ {
		sess, err = s.AppendMessage(ctx, shop, "b", RoleUser, "msg", "")
		require.NoError(t, err)
	}
	assert.Len(t, sess.CurrentThread().Messages, maxMessages)
}

func TestWindowStateMachine(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	_, err := s.Create(ctx, shop, "b")
	require.NoError(t, err)

	path := []WindowState{StateChooser, StateTextOpen, StateTextMinimized, StateTextOpen, StateTextOpen, StateClosed}
	for _, st := range path {
		sess, err := s.UpdateWindowState(ctx, shop, "b", st, nil, 0)
		require.NoError(t, err, st)
		assert.Equal(t, st, sess.WindowState)
	}

	_, err = s.UpdateWindowState(ctx, shop, "b", StateVoiceMinimized, nil, 0)
	var val *apperr.Validation
	require.ErrorAs(t, err, &val)
	assert.Contains(t, val.Messages[0], "closed -> voice_minimized")
}

func TestWindowStateStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	created, err := s.Create(ctx, shop, "b")
	require.NoError(t, err)

	welcome := true
	sess, err := s.UpdateWindowState(ctx, shop, "b", StateChooser, &welcome, created.Version)
	require.NoError(t, err)
	assert.True(t, sess.WelcomeShown)

	// a second tab still holding the original version loses
	_, err = s.UpdateWindowState(ctx, shop, "b", StateVoiceOpen, nil, created.Version)
	var conflict *apperr.Conflict
	require.ErrorAs(t, err, &conflict)
}

func TestSaveDetectsConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	_, err := s.Create(ctx, shop, "b")
	require.NoError(t, err)

	stale, err := s.Get(ctx, shop, "b")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, shop, "b", RoleUser, "first", "")
	require.NoError(t, err)

	err = s.save(ctx, stale, stale.Version)
	var conflict *apperr.Conflict
	require.ErrorAs(t, err, &conflict)
}

func TestClearStartsFreshThread(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	_, err := s.Create(ctx, shop, "b")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, shop, "b", RoleUser, "hi", "")
	require.NoError(t, err)
	_, err = s.SetPendingReturn(ctx, shop, "b", &PendingReturn{OrderNumber: "1001", Email: "a@b.com"})
	require.NoError(t, err)

	sess, err := s.Clear(ctx, shop, "b")
	require.NoError(t, err)
	require.Len(t, sess.Threads, 2)
	assert.Empty(t, sess.CurrentThread().Messages)
	assert.Nil(t, sess.PendingReturn)
}

func TestClearKeepsBoundedThreads(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	created, err := s.Create(ctx, shop, "b")
	require.NoError(t, err)
	first := created.Threads[0].ID

	var sess *Session
	for i := 0; i < maxThreads+3; i++ {
		sess, err = s.Clear(ctx, shop, "b")
		require.NoError(t, err)
	}
	require.Len(t, sess.Threads, maxThreads)
	assert.NotEqual(t, first, sess.Threads[0].ID)
	assert.Empty(t, sess.CurrentThread().Messages)

	stored, err := s.Get(ctx, shop, "b")
	require.NoError(t, err)
	assert.Len(t, stored.Threads, maxThreads)
}

func TestPendingReturnStaleness(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestStore(t)
	_, err := s.Create(ctx, shop, "b")
	require.NoError(t, err)

	sess, err := s.SetPendingReturn(ctx, shop, "b", &PendingReturn{OrderNumber: "1001", Email: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, *clock, sess.PendingReturn.CreatedAt)

	assert.NotNil(t, sess.ActivePendingReturn(clock.Add(29*24*time.Hour)))
	assert.Nil(t, sess.ActivePendingReturn(clock.Add(31*24*time.Hour)))

	empty := &Session{}
	assert.Nil(t, empty.ActivePendingReturn(*clock))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition("", StateChooser))
	assert.True(t, CanTransition(StateVoiceMinimized, StateVoiceOpen))
	assert.False(t, CanTransition(StateClosed, StateTextOpen))
	assert.False(t, CanTransition(StateTextMinimized, StateVoiceOpen))
	assert.False(t, CanTransition(StateChooser, "maximized"))
}
