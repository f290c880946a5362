package peer

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	defaultPingPeriod = (defaultPongWait * 8) / 10

	// Maximum message size allowed from peer. Inbound frames carry the
	// full message text before chunking, so the limit has to admit a
	// multi-chunk text in UTF-8 JSON.
	defaultMaxMessageSize = 65536
)

// MessageListeners 消息监听
type MessageListeners struct {
	// OnMessage is invoked for every complete frame read from the peer.
	OnMessage func(msg []byte) error

	OnDisconnect func() error
}

// Config 节点配置
type Config struct {

	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than pongWait.
	PingPeriod time.Duration
	// Maximum message size allowed from peer.
	MaxMessageSize int

	// MessageQueueLen message len
	MessageQueueLen int

	Listeners *MessageListeners
}

type outMessage struct {
	message []byte
	done    chan<- struct{}
}

// Peer 封装一条 websocket 长连接的读写循环。
// 所有写入都经过 send 队列，上层持有的锁绝不跨越网络写。
type Peer struct {
	id     string
	config *Config
	conn   *websocket.Conn
	send   chan outMessage

	timeConnected time.Time

	// writeMu 串行化底层连接写。gorilla 只允许一个并发写者，
	// 写循环之外还有策略断开会直接写关闭帧。
	writeMu sync.Mutex

	connected int32
}

// NewPeer 创建一个新的节点
func NewPeer(id string, config *Config) *Peer {
	if config.WriteWait == 0 {
		config.WriteWait = defaultWriteWait
	}
	if config.PongWait == 0 {
		config.PongWait = defaultPongWait
	}
	if config.PingPeriod == 0 {
		config.PingPeriod = defaultPingPeriod
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = defaultMaxMessageSize
	}

	if config.PingPeriod >= config.PongWait {
		config.PingPeriod = (config.PongWait * 9) / 10
	}
	return &Peer{
		id:     id,
		config: config,
		send:   make(chan outMessage, config.MessageQueueLen),
	}
}

// ID peer id
func (p *Peer) ID() string {
	return p.id
}

// SetConnection bind connection , start
func (p *Peer) SetConnection(conn *websocket.Conn) {
	// Already connected?
	if !atomic.CompareAndSwapInt32(&p.connected, 0, 1) {
		return
	}

	p.conn = conn
	p.timeConnected = time.Now()

	go p.handleRead()
	go p.handleWrite()
}

func (p *Peer) handleRead() {
	defer func() {
		p.config.Listeners.OnDisconnect()
		p.disconnect()
	}()
	p.conn.SetReadLimit(int64(p.config.MaxMessageSize))
	p.conn.SetReadDeadline(time.Now().Add(p.config.PongWait))
	p.conn.SetPongHandler(func(string) error { p.conn.SetReadDeadline(time.Now().Add(p.config.PongWait)); return nil })
	for {
		messageType, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("peer %v read error: %v", p.id, err)
			}
			break
		}
		if messageType == websocket.CloseMessage {
			break
		}

		if err := p.config.Listeners.OnMessage(message); err != nil {
			log.Printf("peer %v message error: %v", p.id, err)
		}
	}
}

func (p *Peer) handleWrite() {
	ticker := time.NewTicker(p.config.PingPeriod)
	defer func() {
		ticker.Stop()
		p.disconnect()
	}()
	for {
		select {
		case out, ok := <-p.send:
			if !ok {
				// The hub closed the channel.
				p.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			err := p.writeMessage(websocket.TextMessage, out.message)
			if out.done != nil {
				out.done <- struct{}{}
			}
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := p.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage 所有对 conn 的写都从这里过
func (p *Peer) writeMessage(messageType int, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteWait))
	return p.conn.WriteMessage(messageType, data)
}

// PushMessage 把消息写到队列中，等待写循环发出。连接已断开时直接完成。
func (p *Peer) PushMessage(message []byte, doneChan chan<- struct{}) {
	if atomic.LoadInt32(&p.connected) == 0 {
		if doneChan != nil {
			go func() {
				doneChan <- struct{}{}
			}()
		}
		return
	}
	p.send <- outMessage{message: message, done: doneChan}
}

// Close close conn
func (p *Peer) Close() {
	if atomic.LoadInt32(&p.connected) == 0 {
		return
	}
	close(p.send)
}

// CloseWithReason 按策略码主动断开，例如会话被管理端结束。
// 关闭帧与写循环共用一把写锁，可以和排队中的消息并发调用。
func (p *Peer) CloseWithReason(code int, reason string) {
	if atomic.LoadInt32(&p.connected) == 0 {
		return
	}
	p.writeMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason))
	p.disconnect()
}

// 断开连接
func (p *Peer) disconnect() {
	if !atomic.CompareAndSwapInt32(&p.connected, 1, 0) {
		return
	}
	p.conn.Close()
}
