package transfer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/sirupsen/logrus"

	"github.com/yarkm13/ftpsync/internal/secret"
)

const (
	downloadAttempts   = 3
	downloadRetryDelay = time.Second
)

type FTPConnectorFactory struct {
	opts Options
}

func (f *FTPConnectorFactory) Accept(protocol string) bool {
	return protocol == ProtocolFTP
}

func (f *FTPConnectorFactory) Create() Connector {
	return &FTPConnector{
		log:        f.opts.logger(),
		location:   f.opts.FTPLocation,
		retryDelay: downloadRetryDelay,
	}
}

func (f *FTPConnectorFactory) Name() string {
	return ProtocolFTP
}

type FTPConnector struct {
	client *ftp.ServerConn
	conns  connTracker
	addr   string
	creds  *secret.Credentials // kept to log in again when the control connection drops
	log    logrus.FieldLogger

	// location of the timestamps in LIST output, UTC when nil
	location   *time.Location
	retryDelay time.Duration
}

func (f *FTPConnector) Connect(ctx context.Context, ep Endpoint) error {
	if f.client != nil {
		return errors.New("ftp: already connected")
	}

	f.addr = net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	log := f.log.WithFields(logrus.Fields{"protocol": ProtocolFTP, "host": f.addr})
	if ep.Auth() == AuthPrivateKey {
		log.Warn("private key authentication is not available over ftp, using password")
	}

	user, password := ep.UserName, ep.Password
	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	f.creds = secret.NewCredentials(user, password)
	f.log = log

	stop := f.conns.bind(ctx)
	defer stop()

	log.Debug("dialing")
	c, err := f.dial()
	if err != nil {
		f.creds.Clear()
		if cerr := ctxErr(ctx); cerr != nil {
			return fmt.Errorf("ftp connect %s: %w", f.addr, cerr)
		}
		return err
	}

	f.client = c
	return nil
}

// dial opens a control connection and logs in with the stored credentials.
func (f *FTPConnector) dial() (*ftp.ServerConn, error) {
	opts := []ftp.DialOption{ftp.DialWithDialFunc(f.conns.dial)}
	if f.location != nil {
		opts = append(opts, ftp.DialWithLocation(f.location))
	}

	c, err := ftp.Dial(f.addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("ftp dial %s: %w", f.addr, err)
	}
	if err := c.Login(f.creds.Username, f.creds.Password()); err != nil {
		_ = c.Quit() // Close connection on login failure
		return nil, fmt.Errorf("ftp login as %s: %w", f.creds.Username, err)
	}
	return c, nil
}

// reconnect replaces a control connection the server dropped.
func (f *FTPConnector) reconnect() error {
	_ = f.client.Quit()
	c, err := f.dial()
	if err != nil {
		return err
	}
	f.client = c
	f.log.Info("reconnected")
	return nil
}

func (f *FTPConnector) FetchMatching(ctx context.Context, remoteDir, localDir string, sel Selector) (int, error) {
	if f.client == nil {
		return 0, errors.New("ftp: not connected")
	}

	stop := f.conns.bind(ctx)
	defer stop()

	f.log.WithField("remote_dir", remoteDir).Debug("listing")
	entries, err := f.client.List(remoteDir)
	if err != nil {
		if cerr := ctxErr(ctx); cerr != nil {
			return 0, cerr
		}
		return 0, fmt.Errorf("ftp list %q: %w", remoteDir, err)
	}

	count := 0
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		name := path.Base(e.Name)
		if !sel.Match(name, e.Time) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}

		remotePath := name
		if remoteDir != "" {
			remotePath = path.Join(remoteDir, name)
		}

		f.log.WithField("file", remotePath).Debug("downloading")
		if err := f.DownloadFile(ctx, remotePath, localDir, e.Time); err != nil {
			if cerr := ctxErr(ctx); cerr != nil {
				return count, cerr
			}
			return count, fmt.Errorf("ftp download %s: %w", remotePath, err)
		}
		count++
	}

	return count, nil
}

func (f *FTPConnector) DownloadFile(ctx context.Context, remotePath, localDir string, modTime time.Time) error {
	var err error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		err = f.downloadFileOnce(remotePath, localDir, modTime)
		if err == nil {
			return nil
		}
		if cerr := ctxErr(ctx); cerr != nil {
			return cerr
		}
		f.log.WithError(err).WithField("file", remotePath).Warnf("download attempt %d failed", attempt)
		if attempt == downloadAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.retryDelay * time.Duration(attempt)):
		}

		if f.client.NoOp() != nil {
			if rerr := f.reconnect(); rerr != nil {
				return fmt.Errorf("reconnect after %w: %w", err, rerr)
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", downloadAttempts, err)
}

func (f *FTPConnector) downloadFileOnce(remotePath, localDir string, modTime time.Time) error {
	r, err := f.client.Retr(remotePath)
	if err != nil {
		return err
	}

	part, err := stageRemoteFile(remotePath, localDir, r)
	// an aborted transfer only shows up in the status read by Close
	if cerr := r.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("transfer not completed: %w", cerr)
	}
	if err != nil {
		if part != nil {
			part.discard()
		}
		return err
	}

	if err := part.commit(modTime); err != nil {
		part.discard()
		return err
	}
	return nil
}

func (f *FTPConnector) Close() error {
	if f.creds != nil {
		f.creds.Clear()
	}
	if f.client == nil {
		return nil
	}
	err := f.client.Quit()
	f.client = nil
	f.conns.closeAll()
	if errors.Is(err, net.ErrClosed) {
		// already dropped when a deadline expired
		return nil
	}
	return err
}
