package hub

import (
	"sync"
)

// CloseSessionPolicy 策略断开用的 websocket close code
const CloseSessionPolicy = 1008

const registryShardCount = 16

// Registry 进程内的长连接注册表，userID -> token -> 连接。
// 按 userID 分片，不同用户的注册/注销互不阻塞。
// 锁内只动表，网络写一律发生在快照上。
type Registry struct {
	shards [registryShardCount]*registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	users map[int64]map[string]*ClientPeer
}

// NewRegistry NewRegistry
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{users: make(map[int64]map[string]*ClientPeer)}
	}
	return r
}

func (r *Registry) shard(userID int64) *registryShard {
	return r.shards[uint64(userID)%registryShardCount]
}

// Register 登记一条连接。同一 token 重复注册静默替换，
// 默认旧连接已经断开。
func (r *Registry) Register(userID int64, token string, peer *ClientPeer) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	devices, ok := s.users[userID]
	if !ok {
		devices = make(map[string]*ClientPeer)
		s.users[userID] = devices
	}
	devices[token] = peer
}

// Unregister 注销一条连接；该用户最后一台设备下线时连用户项一起删，
// 反复上下线不积垃圾。
func (r *Registry) Unregister(userID int64, token string) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	devices, ok := s.users[userID]
	if !ok {
		return
	}
	delete(devices, token)
	if len(devices) == 0 {
		delete(s.users, userID)
	}
}

// Connections 当前在线设备的快照，无连接时返回空
func (r *Registry) Connections(userID int64) []*ClientPeer {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices, ok := s.users[userID]
	if !ok {
		return nil
	}
	peers := make([]*ClientPeer, 0, len(devices))
	for _, p := range devices {
		peers = append(peers, p)
	}
	return peers
}

// HasConnections 用户是否有在线设备
func (r *Registry) HasConnections(userID int64) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// ForceDisconnect 会话被管理端结束时踢掉还在线的设备：
// 先按策略码关连接，再注销
func (r *Registry) ForceDisconnect(userID int64, token string, reason string) {
	s := r.shard(userID)
	s.mu.Lock()
	peer, ok := s.users[userID][token]
	s.mu.Unlock()
	if ok {
		peer.CloseWithReason(CloseSessionPolicy, reason)
	}
	r.Unregister(userID, token)
}
