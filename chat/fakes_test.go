package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/chatd/database"
	"github.com/chatd/wire"
)

// 内存实现的存储与投递出口，足够跑完整条消息主流程

type fakeMessageStore struct {
	nextID     int64
	rows       []*database.Message
	failInsert error
}

func (s *fakeMessageStore) Insert(msg *database.Message) (*database.Message, error) {
	if s.failInsert != nil {
		return nil, s.failInsert
	}
	s.nextID++
	row := *msg
	row.ID = s.nextID
	if row.SendTime.IsZero() {
		row.SendTime = time.Unix(0, s.nextID*int64(time.Millisecond))
	}
	s.rows = append(s.rows, &row)
	out := row
	return &out, nil
}

func (s *fakeMessageStore) FindByID(id int64) (*database.Message, error) {
	for _, row := range s.rows {
		if row.ID == id {
			out := *row
			return &out, nil
		}
	}
	return nil, nil
}

func (s *fakeMessageStore) PrivateHistory(userID, chatID int64) ([]database.Message, error) {
	var out []database.Message
	for _, row := range s.rows {
		sentVisible := row.SenderID == userID && row.ChatID == chatID && !row.DeletedBySender
		receivedVisible := row.SenderID == chatID && row.ChatID == userID && !row.DeletedByReceiver
		if sentVisible || receivedVisible {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) EntityHistory(chatID int64) ([]database.Message, error) {
	var out []database.Message
	for _, row := range s.rows {
		if row.ChatID == chatID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) LastPrivateMessage(userID, chatID int64) (*database.Message, error) {
	history, _ := s.PrivateHistory(userID, chatID)
	if len(history) == 0 {
		return nil, nil
	}
	last := history[0]
	for _, row := range history[1:] {
		if !row.SendTime.Before(last.SendTime) {
			last = row
		}
	}
	return &last, nil
}

func (s *fakeMessageStore) LastEntityMessage(chatID int64) (*database.Message, error) {
	history, _ := s.EntityHistory(chatID)
	if len(history) == 0 {
		return nil, nil
	}
	last := history[len(history)-1]
	return &last, nil
}

func (s *fakeMessageStore) UpdateFlags(id int64, flags database.MessageFlags) error {
	for _, row := range s.rows {
		if row.ID == id {
			row.IsRead = flags.IsRead
			row.DeletedBySender = flags.DeletedBySender
			row.DeletedByReceiver = flags.DeletedByReceiver
		}
	}
	return nil
}

func (s *fakeMessageStore) Delete(id int64) error {
	kept := s.rows[:0]
	for _, row := range s.rows {
		if row.ID != id {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

func (s *fakeMessageStore) DeleteConversation(userID, chatID int64) error {
	kept := s.rows[:0]
	for _, row := range s.rows {
		if !(row.SenderID == userID && row.ChatID == chatID) {
			kept = append(kept, row)
		}
	}
	s.rows = kept
	return nil
}

type memberKey struct {
	userID int64
	chatID int64
}

type fakeMemberStore struct {
	rows map[memberKey]*database.ChatMember
	keys []memberKey
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{rows: make(map[memberKey]*database.ChatMember)}
}

func (s *fakeMemberStore) Get(userID, chatID int64) (*database.ChatMember, error) {
	if row, ok := s.rows[memberKey{userID, chatID}]; ok {
		out := *row
		return &out, nil
	}
	return nil, nil
}

func (s *fakeMemberStore) Upsert(member *database.ChatMember) error {
	key := memberKey{member.UserID, member.ChatID}
	if _, ok := s.rows[key]; !ok {
		s.keys = append(s.keys, key)
	}
	row := *member
	s.rows[key] = &row
	return nil
}

func (s *fakeMemberStore) ListByUser(userID int64) ([]database.ChatMember, error) {
	var out []database.ChatMember
	for _, key := range s.keys {
		if key.userID == userID {
			if row, ok := s.rows[key]; ok {
				out = append(out, *row)
			}
		}
	}
	return out, nil
}

func (s *fakeMemberStore) SetArchived(userID, chatID int64, archived bool) error {
	if row, ok := s.rows[memberKey{userID, chatID}]; ok {
		row.IsArchived = archived
	}
	return nil
}

func (s *fakeMemberStore) SetPinned(userID, chatID int64, pinned bool) error {
	if row, ok := s.rows[memberKey{userID, chatID}]; ok {
		row.IsPinned = pinned
	}
	return nil
}

func (s *fakeMemberStore) Delete(userID, chatID int64) error {
	delete(s.rows, memberKey{userID, chatID})
	return nil
}

type fakeUserStore struct {
	rows map[int64]*database.User
}

func newFakeUserStore(users ...*database.User) *fakeUserStore {
	s := &fakeUserStore{rows: make(map[int64]*database.User)}
	for _, u := range users {
		s.rows[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) Create(user *database.User) error {
	s.rows[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByID(id int64) (*database.User, error) {
	if user, ok := s.rows[id]; ok {
		return user, nil
	}
	return nil, nil
}

func (s *fakeUserStore) FindByLogin(login string) (*database.User, error) {
	for _, user := range s.rows {
		if user.Login == login {
			return user, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) Search(prefix string) ([]database.User, error) {
	var out []database.User
	for _, user := range s.rows {
		if strings.HasPrefix(user.Username, prefix) {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (s *fakeUserStore) UpdateProfile(user *database.User) error {
	if row, ok := s.rows[user.ID]; ok {
		row.FirstName = user.FirstName
		row.LastName = user.LastName
		row.Username = user.Username
		row.Bio = user.Bio
	}
	return nil
}

type fakeGroupStore struct {
	rows    map[int64]*database.Group
	members map[int64][]int64
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{
		rows:    make(map[int64]*database.Group),
		members: make(map[int64][]int64),
	}
}

func (s *fakeGroupStore) Create(group *database.Group) error {
	s.rows[group.ID] = group
	return nil
}

func (s *fakeGroupStore) FindByID(id int64) (*database.Group, error) {
	if group, ok := s.rows[id]; ok {
		return group, nil
	}
	return nil, nil
}

func (s *fakeGroupStore) Delete(ownerID, id int64) error {
	delete(s.rows, id)
	delete(s.members, id)
	return nil
}

func (s *fakeGroupStore) Join(groupID, userID int64) error {
	s.members[groupID] = append(s.members[groupID], userID)
	return nil
}

func (s *fakeGroupStore) Leave(groupID, userID int64) error {
	kept := s.members[groupID][:0]
	for _, id := range s.members[groupID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	s.members[groupID] = kept
	return nil
}

func (s *fakeGroupStore) Members(groupID int64) ([]int64, error) {
	return s.members[groupID], nil
}

type fakeChannelStore struct {
	rows    map[int64]*database.Channel
	members map[int64][]int64
}

func newFakeChannelStore() *fakeChannelStore {
	return &fakeChannelStore{
		rows:    make(map[int64]*database.Channel),
		members: make(map[int64][]int64),
	}
}

func (s *fakeChannelStore) Create(channel *database.Channel) error {
	s.rows[channel.ID] = channel
	return nil
}

func (s *fakeChannelStore) FindByID(id int64) (*database.Channel, error) {
	if channel, ok := s.rows[id]; ok {
		return channel, nil
	}
	return nil, nil
}

func (s *fakeChannelStore) Delete(ownerID, id int64) error {
	delete(s.rows, id)
	delete(s.members, id)
	return nil
}

func (s *fakeChannelStore) Join(channelID, userID int64) error {
	s.members[channelID] = append(s.members[channelID], userID)
	return nil
}

func (s *fakeChannelStore) Leave(channelID, userID int64) error {
	kept := s.members[channelID][:0]
	for _, id := range s.members[channelID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	s.members[channelID] = kept
	return nil
}

func (s *fakeChannelStore) Members(channelID int64) ([]int64, error) {
	return s.members[channelID], nil
}

type fakeFolderStore struct {
	rows    map[int64]*database.ChatFolder
	entries map[int64][]*database.FolderChat
	nextID  int64
}

func newFakeFolderStore() *fakeFolderStore {
	return &fakeFolderStore{
		rows:    make(map[int64]*database.ChatFolder),
		entries: make(map[int64][]*database.FolderChat),
	}
}

func (s *fakeFolderStore) Save(folder *database.ChatFolder) (*database.ChatFolder, error) {
	if folder.ID == 0 {
		s.nextID++
		folder.ID = s.nextID
	}
	s.rows[folder.ID] = folder
	return folder, nil
}

func (s *fakeFolderStore) FindByID(id int64) (*database.ChatFolder, error) {
	if folder, ok := s.rows[id]; ok {
		return folder, nil
	}
	return nil, nil
}

func (s *fakeFolderStore) ListByUser(userID int64) ([]database.ChatFolder, error) {
	var out []database.ChatFolder
	for _, folder := range s.rows {
		if folder.UserID == userID {
			out = append(out, *folder)
		}
	}
	return out, nil
}

func (s *fakeFolderStore) Delete(id int64) error {
	delete(s.rows, id)
	delete(s.entries, id)
	return nil
}

func (s *fakeFolderStore) AddChat(folderID, chatID int64) error {
	s.entries[folderID] = append(s.entries[folderID], &database.FolderChat{
		FolderID: folderID, ChatID: chatID,
	})
	return nil
}

func (s *fakeFolderStore) RemoveChat(folderID, chatID int64) error {
	kept := s.entries[folderID][:0]
	for _, entry := range s.entries[folderID] {
		if entry.ChatID != chatID {
			kept = append(kept, entry)
		}
	}
	s.entries[folderID] = kept
	return nil
}

func (s *fakeFolderStore) ListChats(folderID int64) ([]database.FolderChat, error) {
	var out []database.FolderChat
	for _, entry := range s.entries[folderID] {
		out = append(out, *entry)
	}
	return out, nil
}

func (s *fakeFolderStore) SetChatPinned(folderID, chatID int64, pinned bool) error {
	for _, entry := range s.entries[folderID] {
		if entry.ChatID == chatID {
			entry.IsPinned = pinned
		}
	}
	return nil
}

type sendCall struct {
	userID      int64
	exceptToken string
	echo        bool
	action      wire.Action
	data        interface{}
}

type fakeFanout struct {
	mu     sync.Mutex
	online map[int64]bool
	sends  []sendCall
}

func newFakeFanout(online ...int64) *fakeFanout {
	f := &fakeFanout{online: make(map[int64]bool)}
	for _, id := range online {
		f.online[id] = true
	}
	return f
}

func (f *fakeFanout) SendToUser(userID int64, action wire.Action, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sendCall{userID: userID, action: action, data: data})
}

func (f *fakeFanout) SendToUserExcept(userID int64, exceptToken string, action wire.Action, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sendCall{
		userID: userID, exceptToken: exceptToken, echo: true, action: action, data: data,
	})
}

func (f *fakeFanout) HasConnections(userID int64) bool {
	return f.online[userID]
}

// sentTo 投给 userID 的非回显帧
func (f *fakeFanout) sentTo(userID int64) []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sendCall
	for _, call := range f.sends {
		if call.userID == userID && !call.echo {
			out = append(out, call)
		}
	}
	return out
}

// echoesTo 发送者设备的回显帧
func (f *fakeFanout) echoesTo(userID int64) []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sendCall
	for _, call := range f.sends {
		if call.userID == userID && call.echo {
			out = append(out, call)
		}
	}
	return out
}

type pushCall struct {
	userID int64
	title  string
	body   string
	chatID int64
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushes []pushCall
}

func (n *fakeNotifier) Push(userID int64, title, body string, chatID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, pushCall{userID, title, body, chatID})
}

func testStores(messages *fakeMessageStore, members *fakeMemberStore, users *fakeUserStore,
	groups *fakeGroupStore, channels *fakeChannelStore, folders *fakeFolderStore) *database.Stores {
	return &database.Stores{
		Messages: messages,
		Members:  members,
		Users:    users,
		Groups:   groups,
		Channels: channels,
		Folders:  folders,
	}
}
