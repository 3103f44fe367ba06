package main

import (
	"encoding/json"
	"io/ioutil"
	"log"
	"time"

	"github.com/leoyanggit/bonefish"
)

// Config is the on-disk configuration for the bonefishd process: which
// transports to listen on and the router configuration (realms) to serve.
type Config struct {
	WebSocket struct {
		Address      string `json:"address"`
		CertFile     string `json:"cert_file"`
		KeyFile      string `json:"key_file"`
		OutQueueSize int    `json:"out_queue_size"`
	} `json:"websocket"`

	RawSocket struct {
		TCPAddress           string        `json:"tcp_address"`
		UnixAddress          string        `json:"unix_address"`
		MaxMsgLen            int           `json:"max_msg_len"`
		OutQueueSize         int           `json:"out_queue_size"`
		TCPKeepAliveInterval time.Duration `json:"tcp_keepalive_interval"`
	} `json:"rawsocket"`

	LogPath string         `json:"log_path"`
	Router  bonefish.Config `json:"router"`
}

// LoadConfig reads and parses the JSON config file at path.
func LoadConfig(path string) *Config {
	file, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatal("Config file missing: ", err)
	}

	var config Config
	if err = json.Unmarshal(file, &config); err != nil {
		log.Fatal("Config parse error: ", err)
	}

	return &config
}
