package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecare/internal/domain/entity"
	"storecare/internal/domain/repository"
)

func newController(t *testing.T, identity *entity.Identity, store repository.ConversationStore, opts ...SyncOption) *ConversationSyncController {
	t.Helper()
	c := NewConversationSyncController(&stubIdentity{identity: identity}, store, opts...)
	t.Cleanup(c.Unmount)
	return c
}

func TestMount_NoIdentityBlocksScreen(t *testing.T) {
	tests := []struct {
		name     string
		identity *stubIdentity
	}{
		{"unauthenticated", &stubIdentity{}},
		{"provider error", &stubIdentity{err: errors.New("token expired")}},
		{"empty id", &stubIdentity{identity: &entity.Identity{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

			c := NewConversationSyncController(tt.identity, store)
			defer c.Unmount()

			c.SetConversation("conv-1")
			c.Mount(context.Background())
			c.SetConversation("conv-2")

			assert.Equal(t, SyncResolvingIdentity, c.State())
			assert.Nil(t, c.Identity())
			assert.False(t, c.Send(context.Background(), "hello"))

			time.Sleep(20 * time.Millisecond)
			assert.Zero(t, store.totalCalls())
			assert.Equal(t, int32(1), tt.identity.calls)
		})
	}
}

func TestMount_WaitsForConversationID(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

	c := newController(t, customer, store)
	c.Mount(context.Background())

	assert.Equal(t, SyncAwaitingConversationID, c.State())
	assert.Equal(t, customer, c.Identity())
	assert.Zero(t, store.totalCalls())

	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")
}

func TestPipeline_LoadsHistoryThenAppendsLiveMessages(t *testing.T) {
	store := newRecordingStore()
	store.SetClock(steppingClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)))
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})
	m1 := store.post(t, "conv-1", customer.ID, "first")
	m2 := store.post(t, "conv-1", staffA.ID, "second")

	c := newController(t, customer, store)
	c.SetConversation("conv-1")
	c.Mount(context.Background())
	waitForLive(t, c, "conv-1")

	assert.Equal(t, []string{m1.ID, m2.ID}, messageIDs(c.Messages()))

	m3 := store.post(t, "conv-1", staffA.ID, "third")
	require.Eventually(t, func() bool { return len(c.Messages()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{m1.ID, m2.ID, m3.ID}, messageIDs(c.Messages()))
}

func TestPipeline_MessagesStayOrderedByCreationTime(t *testing.T) {
	store := newRecordingStore()
	store.SetClock(steppingClock(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)))
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

	for i := 0; i < 4; i++ {
		store.post(t, "conv-1", customer.ID, fmt.Sprintf("before %d", i))
	}

	c := newController(t, customer, store)
	c.Mount(context.Background())
	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")

	for i := 0; i < 6; i++ {
		store.post(t, "conv-1", staffA.ID, fmt.Sprintf("after %d", i))
	}
	require.Eventually(t, func() bool { return len(c.Messages()) == 10 }, time.Second, 5*time.Millisecond)

	messages := c.Messages()
	assert.True(t, sort.SliceIsSorted(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	}))

	seen := make(map[string]bool)
	for _, m := range messages {
		assert.False(t, seen[m.ID], "duplicate message %s", m.ID)
		seen[m.ID] = true
	}
}

func TestAssign_FirstOpenerClaims(t *testing.T) {
	for _, name := range []string{"compare and swap", "read then write"} {
		t.Run(name, func(t *testing.T) {
			store := newRecordingStore()
			store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

			open := func(actor *entity.Identity) {
				var c *ConversationSyncController
				if name == "read then write" {
					c = NewConversationSyncController(&stubIdentity{identity: actor}, readWriteStore{store})
				} else {
					c = NewConversationSyncController(&stubIdentity{identity: actor}, store)
				}
				c.Mount(context.Background())
				c.SetConversation("conv-1")
				waitForLive(t, c, "conv-1")
				c.Unmount()
			}

			open(staffA)
			conversation, err := store.MemoryConversationStore.ReadConversation(context.Background(), "conv-1")
			require.NoError(t, err)
			assert.Equal(t, staffA.ID, conversation.AssignedStaffID)

			open(staffB)
			conversation, err = store.MemoryConversationStore.ReadConversation(context.Background(), "conv-1")
			require.NoError(t, err)
			assert.Equal(t, staffA.ID, conversation.AssignedStaffID)
			assert.Equal(t, customer.ID, conversation.UserID)

			if name == "read then write" {
				assert.Equal(t, 1, store.count("WriteConversationAssignment"))
				assert.Zero(t, store.count("ClaimConversation"))
			} else {
				assert.Equal(t, 2, store.count("ClaimConversation"))
				assert.Zero(t, store.count("WriteConversationAssignment"))
			}
		})
	}
}

func TestAssign_CustomerClaimsOwnerOnlyWhenUnset(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "unowned"})
	store.seed(t, &entity.Conversation{ID: "mine", UserID: customer.ID})

	c := newController(t, customer, readWriteStore{store})
	c.Mount(context.Background())

	c.SetConversation("unowned")
	waitForLive(t, c, "unowned")
	c.SetConversation("mine")
	waitForLive(t, c, "mine")

	unowned, err := store.MemoryConversationStore.ReadConversation(context.Background(), "unowned")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, unowned.UserID)
	assert.Empty(t, unowned.AssignedStaffID)

	mine, err := store.MemoryConversationStore.ReadConversation(context.Background(), "mine")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, mine.UserID)
	assert.Equal(t, 1, store.count("WriteConversationOwner"))
}

func TestAssign_RefusesCustomerOfAnotherConversation(t *testing.T) {
	outsider := &entity.Identity{ID: "cust-2", Role: entity.RoleCustomer}

	for _, name := range []string{"compare and swap", "read then write"} {
		t.Run(name, func(t *testing.T) {
			store := newRecordingStore()
			store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID, AssignedStaffID: staffA.ID})
			store.post(t, "conv-1", customer.ID, "my address is 1 Main St")

			var backend repository.ConversationStore = store
			if name == "read then write" {
				backend = readWriteStore{store}
			}
			c := newController(t, outsider, backend)
			c.Mount(context.Background())
			c.SetConversation("conv-1")

			require.Eventually(t, func() bool {
				for {
					select {
					case event := <-c.Events():
						if event.Kind == EventAccessDenied {
							assert.Equal(t, "conv-1", event.ConversationID)
							return true
						}
					default:
						return false
					}
				}
			}, 2*time.Second, 5*time.Millisecond)

			assert.Equal(t, SyncAssigning, c.State())
			assert.True(t, c.Loading())
			assert.Empty(t, c.Messages())
			assert.False(t, c.Send(context.Background(), "hello from outside"))

			assert.Zero(t, store.count("ListMessages"))
			assert.Zero(t, store.count("SubscribeToNewMessages"))
			assert.Zero(t, store.count("InsertMessage"))
			assert.Zero(t, store.count("UpdateConversationTimestamp"))
			assert.Zero(t, store.count("WriteConversationOwner"))

			conversation, err := store.MemoryConversationStore.ReadConversation(context.Background(), "conv-1")
			require.NoError(t, err)
			assert.Equal(t, customer.ID, conversation.UserID)

			messages, err := store.MemoryConversationStore.ListMessages(context.Background(), "conv-1")
			require.NoError(t, err)
			assert.Len(t, messages, 1)
		})
	}
}

func TestAssign_StaffMayJoinAnotherStaffMembersConversation(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID, AssignedStaffID: staffA.ID})
	store.post(t, "conv-1", customer.ID, "still there?")

	c := newController(t, staffB, store)
	c.Mount(context.Background())
	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")

	assert.Len(t, c.Messages(), 1)
	assert.True(t, c.Send(context.Background(), "covering for a colleague"))
}

func TestSend_RefusedUntilAdmitted(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})
	release := store.holdList("conv-1")
	defer release()

	// A conversation whose claim fails is never admitted.
	c := newController(t, customer, store)
	c.Mount(context.Background())
	c.SetConversation("missing")
	require.Eventually(t, func() bool { return store.count("ClaimConversation") == 1 }, time.Second, 5*time.Millisecond)

	assert.False(t, c.Send(context.Background(), "into the void"))
	assert.Zero(t, store.count("InsertMessage"))

	c.SetConversation("conv-1")
	select {
	case <-store.listCalls:
	case <-time.After(2 * time.Second):
		t.Fatal("history fetch never started")
	}
	assert.True(t, c.Send(context.Background(), "admitted"))
	assert.Equal(t, 1, store.count("InsertMessage"))
}

func TestAssign_FailureStopsBeforeHistory(t *testing.T) {
	store := newRecordingStore()

	c := newController(t, customer, store)
	c.Mount(context.Background())
	c.SetConversation("missing")

	require.Eventually(t, func() bool { return store.count("ClaimConversation") == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, SyncAssigning, c.State())
	assert.True(t, c.Loading())
	assert.Zero(t, store.count("ListMessages"))
	assert.Zero(t, store.count("SubscribeToNewMessages"))
}

func TestLoadHistory_FailureStillGoesLive(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})
	store.post(t, "conv-1", customer.ID, "unseen")
	store.listErr = errors.New("deadline exceeded")

	c := newController(t, customer, store)
	c.Mount(context.Background())
	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")

	assert.Empty(t, c.Messages())

	live := store.post(t, "conv-1", staffA.ID, "after failure")
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, live.ID, c.Messages()[0].ID)
}

func TestSubscriptions_AtMostOneOpen(t *testing.T) {
	const n = 5
	store := newRecordingStore()
	for i := 0; i < n; i++ {
		store.seed(t, &entity.Conversation{ID: fmt.Sprintf("conv-%d", i), UserID: customer.ID})
	}

	c := NewConversationSyncController(&stubIdentity{identity: customer}, store)
	c.Mount(context.Background())

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("conv-%d", i)
		c.SetConversation(id)
		waitForLive(t, c, id)

		open, maxOpen, opened, closed := store.subscriptions()
		assert.Equal(t, 1, open)
		assert.Equal(t, 1, maxOpen)
		assert.Equal(t, i+1, opened)
		assert.Equal(t, i, closed)
	}

	c.Unmount()

	open, maxOpen, opened, closed := store.subscriptions()
	assert.Zero(t, open)
	assert.Equal(t, 1, maxOpen)
	assert.Equal(t, n, opened)
	assert.Equal(t, n, closed)
	assert.Equal(t, SyncTornDown, c.State())
}

func TestSubscriptions_RapidSwitchingNeverOverlaps(t *testing.T) {
	store := newRecordingStore()
	for i := 0; i < 20; i++ {
		store.seed(t, &entity.Conversation{ID: fmt.Sprintf("conv-%d", i), UserID: customer.ID})
	}

	c := NewConversationSyncController(&stubIdentity{identity: customer}, store)
	c.Mount(context.Background())

	for i := 0; i < 20; i++ {
		c.SetConversation(fmt.Sprintf("conv-%d", i))
	}
	waitForLive(t, c, "conv-19")

	store.post(t, "conv-19", staffA.ID, "only here")
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "conv-19", c.Messages()[0].ConversationID)

	c.Unmount()

	open, maxOpen, opened, closed := store.subscriptions()
	assert.Zero(t, open)
	assert.LessOrEqual(t, maxOpen, 1)
	assert.Equal(t, opened, closed)
	assert.Zero(t, store.SubscriberCount("conv-19"))
}

func TestSetConversation_SameIDIsNoOp(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

	c := newController(t, customer, store)
	c.Mount(context.Background())
	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")

	c.SetConversation("conv-1")
	time.Sleep(20 * time.Millisecond)

	_, _, opened, closed := store.subscriptions()
	assert.Equal(t, 1, opened)
	assert.Zero(t, closed)
	assert.Equal(t, SyncLive, c.State())
}

func TestSetConversation_EmptyIDClosesSubscription(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})
	store.post(t, "conv-1", customer.ID, "hi")

	c := newController(t, customer, store)
	c.Mount(context.Background())
	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")

	c.SetConversation("")

	require.Eventually(t, func() bool {
		open, _, _, _ := store.subscriptions()
		return open == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, SyncAwaitingConversationID, c.State())
	assert.Empty(t, c.Messages())
	assert.False(t, c.Send(context.Background(), "anyone?"))
}

func TestSend_RejectsWithoutStoreCalls(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

	live := newController(t, customer, store)
	live.Mount(context.Background())
	live.SetConversation("conv-1")
	waitForLive(t, live, "conv-1")

	noConversation := newController(t, customer, store)
	noConversation.Mount(context.Background())

	noIdentity := newController(t, nil, store)
	noIdentity.Mount(context.Background())
	noIdentity.SetConversation("conv-1")

	tests := []struct {
		name string
		c    *ConversationSyncController
		text string
	}{
		{"empty text", live, ""},
		{"whitespace text", live, "   \t\n"},
		{"no conversation id", noConversation, "hello"},
		{"no identity", noIdentity, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.c.UpdateDraft(tt.text)
			assert.False(t, tt.c.Send(context.Background(), tt.text))
			assert.Equal(t, tt.text, tt.c.Draft())
		})
	}

	assert.Zero(t, store.count("InsertMessage"))
	assert.Zero(t, store.count("UpdateConversationTimestamp"))
}

func TestSend_InsertsThenTouchesConversation(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})
	sentAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	c := newController(t, customer, store, WithClock(func() time.Time { return sentAt }))
	c.Mount(context.Background())
	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")

	c.UpdateDraft("  hello there  ")
	assert.True(t, c.Send(context.Background(), c.Draft()))
	assert.Empty(t, c.Draft())

	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	message := c.Messages()[0]
	assert.Equal(t, "hello there", message.Content)
	assert.Equal(t, customer.ID, message.SenderID)

	conversation, err := store.MemoryConversationStore.ReadConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, sentAt, conversation.UpdatedAt)
	assert.Equal(t, 1, store.count("InsertMessage"))
	assert.Equal(t, 1, store.count("UpdateConversationTimestamp"))
}

func TestSend_PartialFailureIsNotRolledBack(t *testing.T) {
	t.Run("insert fails", func(t *testing.T) {
		store := newRecordingStore()
		store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})
		store.insertErr = errors.New("unavailable")

		c := newController(t, customer, store)
		c.Mount(context.Background())
		c.SetConversation("conv-1")
		waitForLive(t, c, "conv-1")

		c.UpdateDraft("lost")
		assert.True(t, c.Send(context.Background(), "lost"))
		assert.Empty(t, c.Draft())
		assert.Equal(t, 1, store.count("UpdateConversationTimestamp"))

		time.Sleep(20 * time.Millisecond)
		assert.Empty(t, c.Messages())
	})

	t.Run("timestamp update fails", func(t *testing.T) {
		store := newRecordingStore()
		store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})
		before, err := store.MemoryConversationStore.ReadConversation(context.Background(), "conv-1")
		require.NoError(t, err)
		store.touchErr = errors.New("permission denied")

		c := newController(t, customer, store, WithClock(func() time.Time { return before.UpdatedAt.Add(time.Hour) }))
		c.Mount(context.Background())
		c.SetConversation("conv-1")
		waitForLive(t, c, "conv-1")

		assert.True(t, c.Send(context.Background(), "kept"))
		require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)

		after, err := store.MemoryConversationStore.ReadConversation(context.Background(), "conv-1")
		require.NoError(t, err)
		assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	})
}

func TestUnmount_DropsStaleHistoryAndNeverSubscribes(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})
	store.post(t, "conv-1", customer.ID, "stale")
	release := store.holdList("conv-1")
	defer release()

	c := NewConversationSyncController(&stubIdentity{identity: customer}, store)
	c.Mount(context.Background())
	c.SetConversation("conv-1")

	select {
	case <-store.listCalls:
	case <-time.After(2 * time.Second):
		t.Fatal("history fetch never started")
	}

	unmounted := make(chan struct{})
	go func() {
		defer close(unmounted)
		c.Unmount()
	}()

	waitForState(t, c, SyncTornDown)
	release()

	select {
	case <-unmounted:
	case <-time.After(2 * time.Second):
		t.Fatal("unmount did not return")
	}

	_, _, opened, _ := store.subscriptions()
	assert.Zero(t, opened)
	assert.Empty(t, c.Messages())
	assert.Zero(t, store.count("SubscribeToNewMessages"))

	// Events is closed once teardown completes.
	for range c.Events() {
	}

	assert.NotPanics(t, func() {
		c.SetConversation("conv-2")
		c.Unmount()
	})
	assert.False(t, c.Send(context.Background(), "after unmount"))
	assert.Equal(t, SyncTornDown, c.State())
}

func TestSetConversation_DiscardsSupersededHistory(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "slow", UserID: customer.ID})
	store.seed(t, &entity.Conversation{ID: "fast", UserID: customer.ID})
	store.post(t, "slow", customer.ID, "from slow")
	fast := store.post(t, "fast", customer.ID, "from fast")
	release := store.holdList("slow")
	defer release()

	c := newController(t, customer, store)
	c.Mount(context.Background())
	c.SetConversation("slow")

	select {
	case <-store.listCalls:
	case <-time.After(2 * time.Second):
		t.Fatal("history fetch never started")
	}

	c.SetConversation("fast")
	release()
	waitForLive(t, c, "fast")

	assert.Equal(t, []string{fast.ID}, messageIDs(c.Messages()))
	assert.Zero(t, store.SubscriberCount("slow"))
}

func TestEvents_ScrollSignalIsDebounced(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

	c := newController(t, customer, store, WithScrollDelay(50*time.Millisecond))
	c.Mount(context.Background())
	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")

	for i := 0; i < 3; i++ {
		store.post(t, "conv-1", staffA.ID, fmt.Sprintf("burst %d", i))
	}

	var newMessages, scrolls int
	sawHistory := false
	timeout := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case event := <-c.Events():
			switch event.Kind {
			case EventHistoryLoaded:
				sawHistory = true
			case EventNewMessage:
				newMessages++
				assert.Equal(t, "conv-1", event.ConversationID)
			case EventScrollToLatest:
				scrolls++
			}
		case <-timeout:
			break loop
		}
	}

	assert.True(t, sawHistory)
	assert.Equal(t, 3, newMessages)
	assert.Equal(t, 1, scrolls)
}

func TestEvents_StateTransitionsInOrder(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

	c := NewConversationSyncController(&stubIdentity{identity: customer}, store)
	c.SetConversation("conv-1")
	c.Mount(context.Background())
	waitForLive(t, c, "conv-1")
	c.Unmount()

	var (
		states  []SyncState
		loading []bool
	)
	for event := range c.Events() {
		if event.Kind == EventStateChanged {
			states = append(states, event.State)
			loading = append(loading, event.Loading)
		}
	}

	assert.Equal(t, []SyncState{
		SyncResolvingIdentity,
		SyncAwaitingConversationID,
		SyncAssigning,
		SyncLoadingHistory,
		SyncLive,
		SyncTornDown,
	}, states)
	assert.Equal(t, []bool{false, false, true, true, false, false}, loading)
}

func TestEvents_NewMessageMarksOwnMessages(t *testing.T) {
	store := newRecordingStore()
	store.seed(t, &entity.Conversation{ID: "conv-1", UserID: customer.ID})

	c := newController(t, customer, store)
	c.Mount(context.Background())
	c.SetConversation("conv-1")
	waitForLive(t, c, "conv-1")

	require.True(t, c.Send(context.Background(), "mine"))
	store.post(t, "conv-1", staffA.ID, "theirs")

	fromSelf := make(map[string]bool)
	timeout := time.After(2 * time.Second)
	for len(fromSelf) < 2 {
		select {
		case event := <-c.Events():
			if event.Kind == EventNewMessage {
				fromSelf[event.Message.Content] = event.FromSelf
			}
		case <-timeout:
			t.Fatalf("saw only %v", fromSelf)
		}
	}

	assert.Equal(t, map[string]bool{"mine": true, "theirs": false}, fromSelf)
}
