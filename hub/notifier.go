package hub

import (
	"encoding/json"
	"log"

	"github.com/chatd/database"
	"github.com/chatd/filelog"
)

// Notification 一次推送的内容。chatId 告诉客户端点开后进哪个会话。
type Notification struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	ChatID int64  `json:"chatId"`
}

// PushSender 外部推送服务。一次组播带全部目标 token。
type PushSender interface {
	SendMulticast(tokens []string, notification Notification) error
}

type pushJob struct {
	userID int64
	note   Notification
}

// journalEntry 投递日志里的一行，由 filelog 批量落库
type journalEntry struct {
	UserID  int64  `json:"userId"`
	ChatID  int64  `json:"chatId"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// Notifier 落库之后的推送走这里：提交进队列立即返回，
// 工作协程查 token、调外部服务。失败只进日志和投递流水，
// 绝不传回发消息的调用方。
type Notifier struct {
	sessions database.SessionStore
	sender   PushSender
	journal  *filelog.FileLog
	jobs     chan pushJob
	done     chan struct{}
}

// NewNotifier NewNotifier
func NewNotifier(sessions database.SessionStore, sender PushSender, journal *filelog.FileLog) *Notifier {
	n := &Notifier{
		sessions: sessions,
		sender:   sender,
		journal:  journal,
		jobs:     make(chan pushJob, 256),
		done:     make(chan struct{}),
	}
	go n.worker()
	return n
}

// Push 排队一次推送。队列满了就丢，发送路径不等推送。
func (n *Notifier) Push(userID int64, title, body string, chatID int64) {
	select {
	case n.jobs <- pushJob{userID: userID, note: Notification{Title: title, Body: body, ChatID: chatID}}:
	default:
		log.Printf("push queue full, drop push to user %d", userID)
	}
}

func (n *Notifier) worker() {
	for job := range n.jobs {
		n.deliver(job)
	}
	close(n.done)
}

func (n *Notifier) deliver(job pushJob) {
	sessions, err := n.sessions.ListByUser(job.userID)
	if err != nil {
		n.record(job, "SESSIONS_ERROR", err.Error())
		return
	}
	tokens := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if s.PushToken != "" {
			tokens = append(tokens, s.PushToken)
		}
	}
	// 没有可推送的设备不算错误
	if len(tokens) == 0 {
		n.record(job, "NO_TOKENS", "")
		return
	}
	if err := n.sender.SendMulticast(tokens, job.note); err != nil {
		log.Printf("push to user %d: %v", job.userID, err)
		n.record(job, "SEND_ERROR", err.Error())
		return
	}
	n.record(job, "SENT", "")
}

func (n *Notifier) record(job pushJob, outcome, detail string) {
	if n.journal == nil {
		return
	}
	raw, err := json.Marshal(journalEntry{
		UserID:  job.userID,
		ChatID:  job.note.ChatID,
		Outcome: outcome,
		Detail:  detail,
	})
	if err != nil {
		return
	}
	if err := n.journal.Write(raw); err != nil {
		log.Println("push journal write:", err)
	}
}

// Close 排空队列并停止工作协程
func (n *Notifier) Close() {
	close(n.jobs)
	<-n.done
}

// NewDeliveryJournal 投递流水：先追加到文件，攒批转存到 push log 表。
// 转存失败整批重试，不影响推送路径。
func NewDeliveryJournal(path string, store database.PushLogStore) (*filelog.FileLog, error) {
	return filelog.NewFileLog(&filelog.Config{
		File: path,
		SubFunc: func(records [][]byte) error {
			logs := make([]*database.PushLog, 0, len(records))
			for _, record := range records {
				var entry journalEntry
				if err := json.Unmarshal(record, &entry); err != nil {
					continue
				}
				logs = append(logs, &database.PushLog{
					UserID:  entry.UserID,
					ChatID:  entry.ChatID,
					Outcome: entry.Outcome,
					Detail:  entry.Detail,
				})
			}
			return store.Save(logs)
		},
	})
}
