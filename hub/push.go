package hub

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// HTTPPushSender 把组播请求投给外部推送网关
type HTTPPushSender struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewHTTPPushSender NewHTTPPushSender
func NewHTTPPushSender(endpoint, key string) *HTTPPushSender {
	return &HTTPPushSender{
		endpoint: endpoint,
		key:      key,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type multicastRequest struct {
	Tokens []string     `json:"tokens"`
	Data   Notification `json:"data"`
}

// SendMulticast 一次请求带全部目标 token
func (s *HTTPPushSender) SendMulticast(tokens []string, notification Notification) error {
	body, err := json.Marshal(multicastRequest{Tokens: tokens, Data: notification})
	if err != nil {
		return errors.Wrap(err, "push: marshal multicast")
	}
	req, err := http.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "push: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.key != "" {
		req.Header.Set("Authorization", "key="+s.key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "push: send multicast")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("push: gateway status %d", resp.StatusCode)
	}
	return nil
}

// NopPushSender 没配推送网关时的空实现
type NopPushSender struct{}

// SendMulticast SendMulticast
func (NopPushSender) SendMulticast(tokens []string, notification Notification) error {
	return nil
}
