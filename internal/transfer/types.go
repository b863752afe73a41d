package transfer

import (
	"context"
)

const (
	ProtocolFTP  = "ftp"
	ProtocolSFTP = "sftp"
)

// AuthMethod tells a connector which credentials to present.
type AuthMethod int

const (
	AuthPassword AuthMethod = iota
	AuthPrivateKey
)

// Endpoint carries everything a connector needs to open a session
type Endpoint struct {
	Protocol           string
	Host               string
	Port               int
	UserName           string
	Password           string
	PrivateKeyPath     string
	PrivateKeyPassword string
}

// Auth reports the authentication mode. A private key path wins over a password.
func (e Endpoint) Auth() AuthMethod {
	if e.PrivateKeyPath != "" {
		return AuthPrivateKey
	}
	return AuthPassword
}

// Connector interface for remote file operations
type Connector interface {
	Connect(ctx context.Context, ep Endpoint) error
	// FetchMatching downloads every file in remoteDir accepted by sel into localDir
	// and returns how many were written. An empty remoteDir means the session default.
	FetchMatching(ctx context.Context, remoteDir, localDir string, sel Selector) (int, error)
	Close() error
}

// ConnectorFactory interface for creating connectors
type ConnectorFactory interface {
	Accept(protocol string) bool
	Create() Connector
	Name() string
}

// Provider hands out fresh, unconnected connectors.
type Provider interface {
	New(protocol string) (Connector, error)
}
