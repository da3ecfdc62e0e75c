package params

import "os"

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string

	// Token guards the mutating routes. Empty allows all requests.
	Token string `json:"-"`

	// MaxBodyBytes caps uploaded fix and motion batches.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes fits a long offline batch of fixes.
const DefaultMaxBodyBytes = 16 << 20

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3001",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir:        DatadirRoot,
		ListenerConfig: DefaultWebListenerConfig(),
		Token:          os.Getenv("CATRIDE_TOKEN"),
		MaxBodyBytes:   DefaultMaxBodyBytes,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		MaxBodyBytes: 1 << 10,
	}
}
