package chat

import "github.com/pkg/errors"

var (
	// ErrNotParticipant 操作者与这条消息无关，拒绝执行
	ErrNotParticipant = errors.New("chat: not a participant of this message")
	// ErrMessageNotFound ErrMessageNotFound
	ErrMessageNotFound = errors.New("chat: message not found")
	// ErrChatNotFound ErrChatNotFound
	ErrChatNotFound = errors.New("chat: chat not found")
	// ErrFolderNotFound ErrFolderNotFound
	ErrFolderNotFound = errors.New("chat: folder not found")
	// ErrEmptyMessage 不存空消息
	ErrEmptyMessage = errors.New("chat: empty message text")
)
