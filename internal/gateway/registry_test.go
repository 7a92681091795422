package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/teris-io/shortid"

	"github.com/anhphanck/social-app/internal/types"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()

	c1 := &Client{id: "c1", user: types.User{Id: 7}}
	c2 := &Client{id: "c2", user: types.User{Id: 7}}

	assert.True(t, r.register(7, c1), "expected first registration to report the user coming online")
	assert.False(t, r.register(7, c2), "expected second connection not to report an online change")
	assert.False(t, r.register(7, c1), "expected re-registering the same connection to be a no-op")

	assert.Len(t, r.activeClients(7), 2, "expected two active connections for user 7")
	assert.Equal(t, []int{7}, r.onlineUserIds(), "expected only user 7 online")
}

func TestRegistryDeregister(t *testing.T) {
	r := NewRegistry()

	c1 := &Client{id: "c1", user: types.User{Id: 7}}
	c2 := &Client{id: "c2", user: types.User{Id: 7}}
	unknown := &Client{id: "c3", user: types.User{Id: 9}}

	r.register(7, c1)
	r.register(7, c2)

	assert.False(t, r.deregister(unknown), "expected deregistering an unknown connection to be a no-op")
	assert.False(t, r.deregister(c1), "expected user to stay online while a connection remains")
	assert.True(t, r.deregister(c2), "expected user to go offline with the last connection")
	assert.False(t, r.deregister(c2), "expected double deregister to be a no-op")

	assert.Empty(t, r.onlineUserIds(), "expected no users online")
	assert.Empty(t, r.activeClients(7), "expected no active connections for user 7")

	// the entry must be deleted, not left present and empty
	_, ok := r.entries[7]
	assert.False(t, ok, "expected entry for user 7 to be removed")
}

func TestRegistryOnlineUserIds(t *testing.T) {
	r := NewRegistry()

	r.register(9, &Client{id: "c1", user: types.User{Id: 9}})
	r.register(3, &Client{id: "c2", user: types.User{Id: 3}})
	r.register(7, &Client{id: "c3", user: types.User{Id: 7}})

	assert.Equal(t, []int{3, 7, 9}, r.onlineUserIds(), "expected a sorted snapshot of online users")
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	const numUsers = 10
	const connsPerUser = 8

	var wg sync.WaitGroup
	for userId := 1; userId <= numUsers; userId++ {
		for i := 0; i < connsPerUser; i++ {
			wg.Add(1)
			go func(userId int) {
				defer wg.Done()

				c := &Client{id: shortid.MustGenerate(), user: types.User{Id: userId}}
				r.register(userId, c)

				// odd users drop all their connections again
				if userId%2 == 1 {
					r.deregister(c)
				}
			}(userId)
		}
	}
	wg.Wait()

	online := r.onlineUserIds()
	assert.Equal(t, []int{2, 4, 6, 8, 10}, online, "expected only users with open connections to remain online")

	for userId, clients := range r.entries {
		assert.NotEmpty(t, clients, "expected no empty entry for user %d", userId)
	}
}
