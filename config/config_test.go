package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleConfig = `
[server]
ListenIP = 0.0.0.0
ListenPort = 8380
Secret = test-secret
Origin = http://localhost:3000

[mysql]
IP = 192.168.0.127
Port = 3306
User = chatd
Password = chatd
DbName = chatd

[redis]
Enabled = true
IP = 192.168.0.127
Port = 6379

[peer]
MaxMessageSize = 8192
PongWait = 60

[push]
Endpoint = https://fcm.googleapis.com/fcm/send
Key = server-key
`

func TestLoadConfigFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "config")
	assert.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "conf.ini")
	assert.Nil(t, ioutil.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := LoadConfigFile(path)
	assert.Nil(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.ListenIP)
	assert.Equal(t, 8380, cfg.Server.ListenPort)
	assert.Equal(t, "test-secret", cfg.Server.Secret)
	assert.Equal(t, "192.168.0.127", cfg.Mysql.IP)
	assert.Equal(t, 3306, cfg.Mysql.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 8192, cfg.Peer.MaxMessageSize)
	assert.Equal(t, "server-key", cfg.Push.Key)

	// 没配日志路径时给默认值
	assert.NotEqual(t, "", cfg.Server.JournalFile)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile("./no-such-conf.ini")
	assert.NotNil(t, err)
}
