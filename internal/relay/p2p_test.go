package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kojihq/relay/internal/model"
)

func TestDirectDeliveryReachableRecipient(t *testing.T) {
	r, messages, _ := newTestRelay(t)
	sender := testClient(r, RoomP2P, "A")
	recipient := testClient(r, RoomP2P, "B")

	r.handleDirect(sender, []byte(`{"recipientId":"B","content":"hi"}`))

	out := recvJSON(t, recipient)
	assert.Equal(t, "A", out["senderId"])
	assert.Equal(t, "hi", out["content"])
	assert.NotEmpty(t, out["_id"])
	assert.NotEmpty(t, out["timestamp"])

	ack := recvJSON(t, sender)
	assert.Equal(t, true, ack["success"])
	require.NotEmpty(t, ack["_id"])

	stored := messages.directMessage(ack["_id"].(string))
	require.NotNil(t, stored)
	assert.True(t, stored.Read, "live delivery flips the read flag")
	assert.Equal(t, "A", stored.SenderID)
	assert.Equal(t, "B", stored.RecipientID)
}

func TestDirectDeliveryUnreachableRecipient(t *testing.T) {
	r, messages, _ := newTestRelay(t)
	sender := testClient(r, RoomP2P, "A")

	r.handleDirect(sender, []byte(`{"recipientId":"B","content":"hi"}`))

	ack := recvJSON(t, sender)
	assert.Equal(t, true, ack["success"], "persist-only is still a success for the sender")
	require.NotEmpty(t, ack["_id"])

	stored := messages.directMessage(ack["_id"].(string))
	require.NotNil(t, stored)
	assert.False(t, stored.Read, "undelivered message stays unread")
}

func TestDirectDeliveryClosedRecipientIsUnreachable(t *testing.T) {
	r, messages, _ := newTestRelay(t)
	sender := testClient(r, RoomP2P, "A")
	recipient := testClient(r, RoomP2P, "B")
	recipient.closed.Store(true)

	r.handleDirect(sender, []byte(`{"recipientId":"B","content":"hi"}`))

	assertNoMessage(t, recipient)
	ack := recvJSON(t, sender)
	assert.Equal(t, true, ack["success"])
	assert.False(t, messages.directMessage(ack["_id"].(string)).Read)
}

func TestDirectThreadReconstruction(t *testing.T) {
	r, messages, _ := newTestRelay(t)
	messages.seed("parent-1", model.DirectMessage{
		SenderID:    "B",
		RecipientID: "A",
		Content:     "original question",
	})

	sender := testClient(r, RoomP2P, "A")
	recipient := testClient(r, RoomP2P, "B")

	r.handleDirect(sender, []byte(`{"recipientId":"B","content":"reply","parentId":"parent-1"}`))

	out := recvJSON(t, recipient)
	assert.Equal(t, "parent-1", out["parentId"])
	assert.Equal(t, "original question", out["parentMessageContent"])

	ack := recvJSON(t, sender)
	require.Equal(t, true, ack["success"])
	stored := messages.directMessage(ack["_id"].(string))
	assert.Equal(t, "original question", stored.ParentContent)
}

func TestDirectMissingParentIsNotAFailure(t *testing.T) {
	r, messages, _ := newTestRelay(t)
	sender := testClient(r, RoomP2P, "A")
	recipient := testClient(r, RoomP2P, "B")

	r.handleDirect(sender, []byte(`{"recipientId":"B","content":"reply","parentId":"no-such-id"}`))

	out := recvJSON(t, recipient)
	_, hasSnapshot := out["parentMessageContent"]
	assert.False(t, hasSnapshot, "snapshot omitted when the parent is gone")

	ack := recvJSON(t, sender)
	require.Equal(t, true, ack["success"])
	stored := messages.directMessage(ack["_id"].(string))
	assert.Empty(t, stored.ParentContent)
	assert.Equal(t, "no-such-id", stored.ParentID)
}

func TestDirectStoreFailureAcksFailure(t *testing.T) {
	r, messages, _ := newTestRelay(t)
	messages.failCreate = true

	sender := testClient(r, RoomP2P, "A")
	recipient := testClient(r, RoomP2P, "B")

	r.handleDirect(sender, []byte(`{"recipientId":"B","content":"hi"}`))

	assertNoMessage(t, recipient)
	ack := recvJSON(t, sender)
	assert.Equal(t, false, ack["success"])
	assert.NotEmpty(t, ack["message"])
}

func TestDirectMarkReadFailureAcksFailure(t *testing.T) {
	r, messages, _ := newTestRelay(t)
	messages.failMarkRead = true

	sender := testClient(r, RoomP2P, "A")
	recipient := testClient(r, RoomP2P, "B")

	r.handleDirect(sender, []byte(`{"recipientId":"B","content":"hi"}`))

	// The recipient still got the payload before the update failed.
	recvJSON(t, recipient)

	ack := recvJSON(t, sender)
	assert.Equal(t, false, ack["success"])
}

func TestDirectMalformedFrameIsDropped(t *testing.T) {
	r, messages, _ := newTestRelay(t)
	sender := testClient(r, RoomP2P, "A")

	r.handleDirect(sender, []byte(`{not json`))

	assertNoMessage(t, sender)
	assert.Empty(t, messages.dms)
}

func TestDirectSenderOrderPreserved(t *testing.T) {
	r, _, _ := newTestRelay(t)
	sender := testClient(r, RoomP2P, "A")
	recipient := testClient(r, RoomP2P, "B")

	// dispatch is invoked sequentially per connection, as readPump does.
	for _, content := range []string{"one", "two", "three"} {
		r.handleDirect(sender, []byte(`{"recipientId":"B","content":"`+content+`"}`))
	}

	for _, want := range []string{"one", "two", "three"} {
		out := recvJSON(t, recipient)
		assert.Equal(t, want, out["content"])
	}
}
