package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	v1 "plume/shared/contracts/realtime/v1"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry(nil)

	c1 := NewConn("c-1", 8)
	c2 := NewConn("c-2", 8)
	r.Register("u-1", c1)
	r.Register("u-1", c2)
	r.Register("u-1", c2) // duplicate is a no-op

	require.Equal(t, 2, r.ConnCount("u-1"))
	require.Equal(t, []string{"u-1"}, r.Users())

	r.Unregister("u-1", "c-1")
	require.Equal(t, 1, r.ConnCount("u-1"))

	// Removing the last connection removes the user entry entirely.
	r.Unregister("u-1", "c-2")
	require.Empty(t, r.Users())
	require.Zero(t, r.TotalConns())

	// Unknown user / conn is harmless.
	r.Unregister("u-1", "c-2")
	r.Unregister("ghost", "c-9")
}

func TestRegistryEmitToUser(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now().UTC()

	c1 := NewConn("c-1", 8)
	c2 := NewConn("c-2", 8)
	r.Register("u-1", c1)
	r.Register("u-1", c2)

	env := NewForceLogout("password changed", now)
	require.True(t, r.EmitToUser("u-1", env))

	// Every connection of the user receives its own copy.
	require.Len(t, c1.Send, 1)
	require.Len(t, c2.Send, 1)

	got := <-c1.Send
	require.Equal(t, v1.TypeEvent, got.Type)
	require.Equal(t, v1.EventForceLogout, got.Event)

	// A user with no connections is reported unreachable.
	require.False(t, r.EmitToUser("offline", env))
}

func TestRegistryEmitGlobal(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now().UTC()

	c1 := NewConn("c-1", 8)
	c2 := NewConn("c-2", 8)
	r.Register("u-1", c1)
	r.Register("u-2", c2)

	r.EmitGlobal(NewPasswordResetExpired("u-9", now))
	require.Len(t, c1.Send, 1)
	require.Len(t, c2.Send, 1)
}

func TestRegistryEmitDropsOnBackpressure(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now().UTC()

	c := NewConn("c-1", 1)
	r.Register("u-1", c)

	env := NewForceLogout("x", now)
	require.True(t, r.EmitToUser("u-1", env))
	// Queue is full now; the second emit drops but the user is still
	// counted as reachable.
	require.True(t, r.EmitToUser("u-1", env))
	require.Len(t, c.Send, 1)
}

func TestRegistryEmitSkipsClosedConn(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now().UTC()

	c := NewConn("c-1", 8)
	r.Register("u-1", c)
	c.Close()

	require.True(t, r.EmitToUser("u-1", NewForceLogout("x", now)))
	require.Empty(t, c.Send)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now().UTC()
	env := NewForceLogout("x", now)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%4))
			c := NewConn(NewRandomHex(4), 4)
			r.Register(id, c)
			r.EmitToUser(id, env)
			r.EmitGlobal(env)
			r.Unregister(id, c.ID)
		}(i)
	}
	wg.Wait()

	require.Zero(t, r.TotalConns())
	require.Empty(t, r.Users())
}

func TestConnBindOnce(t *testing.T) {
	c := NewConn("c-1", 4)
	require.Empty(t, c.UserID())
	c.Bind("u-1")
	c.Bind("u-2") // first bind wins
	require.Equal(t, "u-1", c.UserID())

	c.Close()
	c.Close() // idempotent
	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	base := time.Now()

	require.True(t, rl.Allow(base))
	require.True(t, rl.Allow(base.Add(100*time.Millisecond)))
	require.True(t, rl.Allow(base.Add(200*time.Millisecond)))
	require.False(t, rl.Allow(base.Add(300*time.Millisecond)))

	// Old stamps fall out of the window.
	require.True(t, rl.Allow(base.Add(1500*time.Millisecond)))
}
