package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Registry is an ordered list of factories; the first one accepting a protocol wins.
type Registry []ConnectorFactory

// DefaultRegistry wires the FTP and SFTP connectors.
func DefaultRegistry(opts Options) Registry {
	return Registry{
		&FTPConnectorFactory{opts: opts},
		&SFTPConnectorFactory{opts: opts, hostKeys: newHostKeyVerifier(opts.KnownHostsFile, opts.Log)},
		// add more
	}
}

func (r Registry) Lookup(protocol string) ConnectorFactory {
	protocol = strings.ToLower(protocol)
	for _, factory := range r {
		if factory.Accept(protocol) {
			return factory
		}
	}
	return nil
}

func (r Registry) New(protocol string) (Connector, error) {
	factory := r.Lookup(protocol)
	if factory == nil {
		return nil, fmt.Errorf("no connector available for protocol %q", protocol)
	}
	return factory.Create(), nil
}

// Options are shared by every connector a registry creates.
type Options struct {
	// KnownHostsFile enables strict SSH host key checking when set.
	KnownHostsFile string
	// FTPLocation is the time zone FTP servers use in directory listings.
	FTPLocation    *time.Location
	Log            logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}
