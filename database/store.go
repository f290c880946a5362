package database

// UserStore 用户表操作接口
type UserStore interface {
	Create(user *User) error
	FindByID(id int64) (*User, error)
	FindByLogin(login string) (*User, error)
	Search(prefix string) ([]User, error)
	UpdateProfile(user *User) error
}

// SessionStore 设备会话表操作接口
type SessionStore interface {
	Create(session *Session) (*Session, error)
	FindActive(userID int64, token string) (*Session, error)
	FindByID(id int64, userID int64) (*Session, error)
	ListByUser(userID int64) ([]Session, error)
	Delete(userID int64, token string) error
	DeleteByToken(token string) error
	DeleteAllExcept(userID int64, token string) error
	UpdatePushToken(token string, pushToken string) error
}

// MessageFlags 消息上可变的三个标记位
type MessageFlags struct {
	IsRead            bool
	DeletedBySender   bool
	DeletedByReceiver bool
}

// MessageStore 消息表操作接口
type MessageStore interface {
	Insert(msg *Message) (*Message, error)
	FindByID(id int64) (*Message, error)
	// PrivateHistory 私聊双向消息，按发送时间升序，
	// 各自过滤掉本方已软删的行
	PrivateHistory(userID, chatID int64) ([]Message, error)
	// EntityHistory 频道/群的共享时间线，无按方过滤
	EntityHistory(chatID int64) ([]Message, error)
	// LastPrivateMessage 私聊会话的最后一条对本方可见的消息，没有则返回 nil
	LastPrivateMessage(userID, chatID int64) (*Message, error)
	// LastEntityMessage 频道/群的最后一条消息，没有则返回 nil
	LastEntityMessage(chatID int64) (*Message, error)
	UpdateFlags(id int64, flags MessageFlags) error
	Delete(id int64) error
	DeleteConversation(userID, chatID int64) error
}

// MemberStore 会话（归档/置顶）记录操作接口
type MemberStore interface {
	Get(userID, chatID int64) (*ChatMember, error)
	Upsert(member *ChatMember) error
	ListByUser(userID int64) ([]ChatMember, error)
	SetArchived(userID, chatID int64, archived bool) error
	SetPinned(userID, chatID int64, pinned bool) error
	Delete(userID, chatID int64) error
}

// FolderStore 会话文件夹操作接口
type FolderStore interface {
	Save(folder *ChatFolder) (*ChatFolder, error)
	FindByID(id int64) (*ChatFolder, error)
	ListByUser(userID int64) ([]ChatFolder, error)
	Delete(id int64) error
	AddChat(folderID, chatID int64) error
	RemoveChat(folderID, chatID int64) error
	ListChats(folderID int64) ([]FolderChat, error)
	SetChatPinned(folderID, chatID int64, pinned bool) error
}

// GroupStore 群与群成员操作接口
type GroupStore interface {
	Create(group *Group) error
	FindByID(id int64) (*Group, error)
	Delete(ownerID, id int64) error
	Join(groupID, userID int64) error
	Leave(groupID, userID int64) error
	Members(groupID int64) ([]int64, error)
}

// ChannelStore 频道与订阅者操作接口
type ChannelStore interface {
	Create(channel *Channel) error
	FindByID(id int64) (*Channel, error)
	Delete(ownerID, id int64) error
	Join(channelID, userID int64) error
	Leave(channelID, userID int64) error
	Members(channelID int64) ([]int64, error)
}

// PushLogStore 投递日志批量落库接口
type PushLogStore interface {
	Save(logs []*PushLog) error
}
