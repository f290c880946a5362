package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatd/database"
	"github.com/chatd/wire"
)

const (
	userAlice = int64(100000001)
	userBob   = int64(100000002)
	userCarol = int64(100000003)
)

func newTestPipeline(fanout *fakeFanout, notify *fakeNotifier) (*Pipeline, *fakeMessageStore, *fakeMemberStore, *fakeGroupStore, *fakeChannelStore) {
	messages := &fakeMessageStore{}
	members := newFakeMemberStore()
	users := newFakeUserStore(
		&database.User{ID: userAlice, Login: "alice", FirstName: "Alice", Username: "alice"},
		&database.User{ID: userBob, Login: "bob", FirstName: "Bob", Username: "bob"},
		&database.User{ID: userCarol, Login: "carol", FirstName: "Carol", Username: "carol"},
	)
	groups := newFakeGroupStore()
	channels := newFakeChannelStore()
	p := NewPipeline(
		testStores(messages, members, users, groups, channels, newFakeFolderStore()),
		database.NewMemberCache(),
		database.NewMemNameCache(),
		fanout,
		notify,
	)
	return p, messages, members, groups, channels
}

func TestSendPrivateOfflinePush(t *testing.T) {
	fanout := newFakeFanout() // 对端没有在线设备
	notify := &fakeNotifier{}
	p, messages, members, _, _ := newTestPipeline(fanout, notify)

	stored, err := p.Send(userAlice, userBob, "hello", "device-a")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(stored))
	assert.Equal(t, userAlice, stored[0].SenderID)
	assert.Equal(t, userBob, stored[0].ChatID)
	assert.False(t, stored[0].IsRead)

	// 双方的会话记录都懒建出来了
	member, _ := members.Get(userAlice, userBob)
	assert.NotNil(t, member)
	member, _ = members.Get(userBob, userAlice)
	assert.NotNil(t, member)

	// 回显帧跳过发起设备
	echoes := fanout.echoesTo(userAlice)
	assert.Equal(t, 1, len(echoes))
	assert.Equal(t, "device-a", echoes[0].exceptToken)

	// 对端离线：在线投递尝试一次，离线推送恰好一条
	assert.Equal(t, 1, len(fanout.sentTo(userBob)))
	assert.Equal(t, 1, len(notify.pushes))
	push := notify.pushes[0]
	assert.Equal(t, userBob, push.userID)
	assert.Equal(t, "Alice", push.title)
	assert.Equal(t, "hello", push.body)
	// 推送里的 chatId 指向发送者，客户端据此打开会话
	assert.Equal(t, userAlice, push.chatID)

	assert.Equal(t, 1, len(messages.rows))
}

func TestSendPrivateOnlineNoPush(t *testing.T) {
	fanout := newFakeFanout(userBob)
	notify := &fakeNotifier{}
	p, _, _, _, _ := newTestPipeline(fanout, notify)

	_, err := p.Send(userAlice, userBob, "hello", "device-a")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(fanout.sentTo(userBob)))
	assert.Equal(t, 0, len(notify.pushes))
}

func TestSendSelfChatAutoRead(t *testing.T) {
	fanout := newFakeFanout()
	notify := &fakeNotifier{}
	p, _, members, _, _ := newTestPipeline(fanout, notify)

	stored, err := p.Send(userAlice, userAlice, "note to self", "device-a")
	assert.Nil(t, err)
	assert.True(t, stored[0].IsRead)

	// 自聊没有对端：不投对端，不推送，也不建会话记录
	assert.Equal(t, 0, len(fanout.sentTo(userAlice)))
	assert.Equal(t, 0, len(notify.pushes))
	member, _ := members.Get(userAlice, userAlice)
	assert.Nil(t, member)

	// 回显照常走，发送者其它设备要看到这条
	assert.Equal(t, 1, len(fanout.echoesTo(userAlice)))
}

func TestSendEmptyText(t *testing.T) {
	p, messages, _, _, _ := newTestPipeline(newFakeFanout(), &fakeNotifier{})

	_, err := p.Send(userAlice, userBob, "", "device-a")
	assert.Equal(t, ErrEmptyMessage, err)
	assert.Equal(t, 0, len(messages.rows))
}

func TestSendLongTextChunks(t *testing.T) {
	fanout := newFakeFanout(userBob)
	p, messages, _, _, _ := newTestPipeline(fanout, &fakeNotifier{})

	text := strings.Repeat("a", 9000)
	stored, err := p.Send(userAlice, userBob, text, "device-a")
	assert.Nil(t, err)
	assert.Equal(t, 3, len(stored))
	assert.Equal(t, 3, len(messages.rows))

	// 按序入库，拼回原文
	var rebuilt strings.Builder
	for i, msg := range stored {
		if i > 0 {
			assert.True(t, msg.ID > stored[i-1].ID)
		}
		rebuilt.WriteString(msg.Text)
	}
	assert.Equal(t, text, rebuilt.String())

	// 每块各有一次在线投递和一次回显
	assert.Equal(t, 3, len(fanout.sentTo(userBob)))
	assert.Equal(t, 3, len(fanout.echoesTo(userAlice)))
}

func TestSendGroupFanout(t *testing.T) {
	groupID := wire.GenerateID(wire.DomainGroup)
	fanout := newFakeFanout(userBob) // Carol 离线
	notify := &fakeNotifier{}
	p, _, _, groups, _ := newTestPipeline(fanout, notify)

	groups.Create(&database.Group{ID: groupID, OwnerID: userAlice, Name: "team"})
	groups.Join(groupID, userAlice)
	groups.Join(groupID, userBob)
	groups.Join(groupID, userCarol)

	_, err := p.Send(userAlice, groupID, "standup", "device-a")
	assert.Nil(t, err)

	// 发送者不在成员扇出里
	assert.Equal(t, 0, len(fanout.sentTo(userAlice)))
	assert.Equal(t, 1, len(fanout.sentTo(userBob)))
	assert.Equal(t, 1, len(fanout.sentTo(userCarol)))

	// 只推离线成员，标题是群名，chatId 指向群
	assert.Equal(t, 1, len(notify.pushes))
	assert.Equal(t, userCarol, notify.pushes[0].userID)
	assert.Equal(t, "team", notify.pushes[0].title)
	assert.Equal(t, groupID, notify.pushes[0].chatID)
}

func TestSendChannelFanout(t *testing.T) {
	channelID := wire.GenerateID(wire.DomainChannel)
	fanout := newFakeFanout(userBob, userCarol)
	notify := &fakeNotifier{}
	p, _, _, _, channels := newTestPipeline(fanout, notify)

	channels.Create(&database.Channel{ID: channelID, OwnerID: userAlice, Name: "updates"})
	channels.Join(channelID, userAlice)
	channels.Join(channelID, userBob)
	channels.Join(channelID, userCarol)

	_, err := p.Send(userAlice, channelID, "release is out", "device-a")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(fanout.sentTo(userBob)))
	assert.Equal(t, 1, len(fanout.sentTo(userCarol)))
	assert.Equal(t, 0, len(notify.pushes))
}

func TestSendUnknownDomain(t *testing.T) {
	fanout := newFakeFanout()
	notify := &fakeNotifier{}
	p, messages, _, _, _ := newTestPipeline(fanout, notify)

	// 前导数字没对应任何会话域
	stored, err := p.Send(userAlice, 912345678, "hi", "device-a")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(stored))
	assert.Equal(t, 1, len(messages.rows))

	// 兜底当私聊存，但不向对端投递也不推送
	assert.Equal(t, 1, len(fanout.echoesTo(userAlice)))
	assert.Equal(t, 0, len(fanout.sentTo(912345678)))
	assert.Equal(t, 0, len(notify.pushes))
}

func TestMessagesPrivateFiltersOwnDeletes(t *testing.T) {
	p, messages, _, _, _ := newTestPipeline(newFakeFanout(), &fakeNotifier{})

	messages.Insert(&database.Message{SenderID: userAlice, ChatID: userBob, Text: "one"})
	messages.Insert(&database.Message{SenderID: userBob, ChatID: userAlice, Text: "two"})
	messages.Insert(&database.Message{SenderID: userAlice, ChatID: userBob, Text: "three", DeletedBySender: true})

	fromAlice, err := p.Messages(userAlice, userBob)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(fromAlice))

	// 对 Bob 来说第三条还在：软删只影响删除方
	fromBob, err := p.Messages(userBob, userAlice)
	assert.Nil(t, err)
	assert.Equal(t, 3, len(fromBob))
}

func TestDeleteForAll(t *testing.T) {
	fanout := newFakeFanout(userAlice, userBob)
	p, messages, _, _, _ := newTestPipeline(fanout, &fakeNotifier{})

	stored, _ := p.Send(userAlice, userBob, "oops", "device-a")
	id := stored[0].ID

	assert.Nil(t, p.Delete(userAlice, userBob, id, true))
	row, _ := messages.FindByID(id)
	assert.Nil(t, row)

	// 双方都收到删除通知
	deletes := 0
	for _, call := range append(fanout.sentTo(userAlice), fanout.sentTo(userBob)...) {
		if call.action == wire.ActionDeleteMessage {
			deletes++
		}
	}
	assert.Equal(t, 2, deletes)
}

func TestDeleteEscalatesWhenBothSidesDelete(t *testing.T) {
	p, messages, _, _, _ := newTestPipeline(newFakeFanout(), &fakeNotifier{})

	stored, _ := p.Send(userAlice, userBob, "secret", "device-a")
	id := stored[0].ID

	// 发送方先删：只打标记，行还在
	assert.Nil(t, p.Delete(userAlice, userBob, id, false))
	row, _ := messages.FindByID(id)
	assert.NotNil(t, row)
	assert.True(t, row.DeletedBySender)
	assert.False(t, row.DeletedByReceiver)

	// 接收方再删：两侧都删过，升级为硬删
	assert.Nil(t, p.Delete(userBob, userAlice, id, false))
	row, _ = messages.FindByID(id)
	assert.Nil(t, row)
}

func TestDeleteSelfChatMessage(t *testing.T) {
	p, messages, _, _, _ := newTestPipeline(newFakeFanout(), &fakeNotifier{})

	stored, _ := p.Send(userAlice, userAlice, "note to self", "device-a")
	id := stored[0].ID

	// 自聊里操作者同时是发送方和接收方：删一次就该删干净
	assert.Nil(t, p.Delete(userAlice, userAlice, id, false))
	row, _ := messages.FindByID(id)
	assert.Nil(t, row)

	history, err := p.Messages(userAlice, userAlice)
	assert.Nil(t, err)
	assert.Equal(t, 0, len(history))
}

func TestDeleteRejectsNonParticipant(t *testing.T) {
	p, _, _, _, _ := newTestPipeline(newFakeFanout(), &fakeNotifier{})

	stored, _ := p.Send(userAlice, userBob, "private", "device-a")
	err := p.Delete(userCarol, userBob, stored[0].ID, false)
	assert.Equal(t, ErrNotParticipant, err)
}

func TestDeleteMissingMessage(t *testing.T) {
	p, _, _, _, _ := newTestPipeline(newFakeFanout(), &fakeNotifier{})
	assert.Equal(t, ErrMessageNotFound, p.Delete(userAlice, userBob, 404, false))
}

func TestMarkRead(t *testing.T) {
	fanout := newFakeFanout(userAlice)
	p, messages, _, _, _ := newTestPipeline(fanout, &fakeNotifier{})

	stored, _ := p.Send(userAlice, userBob, "read me", "device-a")
	id := stored[0].ID

	assert.Nil(t, p.MarkRead(id))
	row, _ := messages.FindByID(id)
	assert.True(t, row.IsRead)

	// 发送方收到读回执
	receipts := 0
	for _, call := range fanout.sentTo(userAlice) {
		if call.action == wire.ActionReadMessage {
			receipts++
			data := call.data.(wire.ReadMessageData)
			assert.Equal(t, id, data.MessageID)
		}
	}
	assert.Equal(t, 1, receipts)
}

func TestMarkReadMissingMessage(t *testing.T) {
	p, _, _, _, _ := newTestPipeline(newFakeFanout(), &fakeNotifier{})
	assert.Equal(t, ErrMessageNotFound, p.MarkRead(404))
}

func TestMarkReadKeepsDeleteFlags(t *testing.T) {
	p, messages, _, _, _ := newTestPipeline(newFakeFanout(), &fakeNotifier{})

	stored, _ := p.Send(userAlice, userBob, "flagged", "device-a")
	id := stored[0].ID
	assert.Nil(t, p.Delete(userAlice, userBob, id, false))

	assert.Nil(t, p.MarkRead(id))
	row, _ := messages.FindByID(id)
	assert.True(t, row.IsRead)
	assert.True(t, row.DeletedBySender)
}
