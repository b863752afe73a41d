package transfer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/yarkm13/ftpsync/internal/secret"
)

const defaultSSHTimeout = 30 * time.Second

type SFTPConnectorFactory struct {
	opts     Options
	hostKeys *hostKeyVerifier
}

func (f *SFTPConnectorFactory) Accept(protocol string) bool {
	return protocol == ProtocolSFTP
}

func (f *SFTPConnectorFactory) Create() Connector {
	return &SFTPConnector{log: f.opts.logger(), hostKeys: f.hostKeys}
}

func (f *SFTPConnectorFactory) Name() string {
	return ProtocolSFTP
}

type SFTPConnector struct {
	conn     net.Conn
	ssh      *ssh.Client
	client   *sftp.Client
	hostKeys *hostKeyVerifier
	log      logrus.FieldLogger
}

func (s *SFTPConnector) Connect(ctx context.Context, ep Endpoint) error {
	if s.client != nil {
		return errors.New("sftp: already connected")
	}

	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	log := s.log.WithFields(logrus.Fields{"protocol": ProtocolSFTP, "host": addr})

	auth, err := s.authMethods(ep)
	if err != nil {
		return err
	}

	if s.hostKeys == nil {
		s.hostKeys = newHostKeyVerifier("", s.log)
	}
	hostKeyCallback, err := s.hostKeys.Callback()
	if err != nil {
		return err
	}

	config := &ssh.ClientConfig{
		User:            ep.UserName,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	}

	log.Debug("dialing")
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}

	// the ssh handshake ignores ctx, bound it with a deadline on the socket
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(defaultSSHTimeout))
	}

	cconn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(cconn, chans, reqs)
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to start sftp subsystem: %w", err)
	}

	s.conn = conn
	s.ssh = client
	s.client = sftpClient
	s.log = log
	return nil
}

func (s *SFTPConnector) authMethods(ep Endpoint) ([]ssh.AuthMethod, error) {
	if ep.Auth() == AuthPrivateKey {
		privateKeyBytes, err := os.ReadFile(ep.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}

		var signer ssh.Signer
		if ep.PrivateKeyPassword != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(privateKeyBytes, []byte(ep.PrivateKeyPassword))
		} else {
			signer, err = ssh.ParsePrivateKey(privateKeyBytes)
		}
		secret.Wipe(privateKeyBytes)
		if err != nil {
			var missing *ssh.PassphraseMissingError
			if errors.As(err, &missing) {
				return nil, fmt.Errorf("private key %s is passphrase protected: %w", ep.PrivateKeyPath, err)
			}
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}

		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	password := ep.Password
	return []ssh.AuthMethod{
		ssh.Password(password),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range questions {
				answers[i] = password
			}
			return answers, nil
		}),
	}, nil
}

func (s *SFTPConnector) FetchMatching(ctx context.Context, remoteDir, localDir string, sel Selector) (int, error) {
	if s.client == nil {
		return 0, errors.New("sftp: not connected")
	}

	// sftp reads don't take a context; dropping the socket unblocks them
	if s.conn != nil {
		stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
		defer stop()
	}

	dir := remoteDir
	if dir == "" {
		dir = "."
	}

	s.log.WithField("remote_dir", dir).Debug("listing")
	infos, err := s.client.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("sftp list %q: %w", dir, err)
	}

	count := 0
	for _, fi := range infos {
		if !fi.Mode().IsRegular() {
			continue
		}
		if !sel.Match(fi.Name(), fi.ModTime()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}

		remotePath := s.client.Join(dir, fi.Name())
		s.log.WithField("file", remotePath).Debug("downloading")
		if err := s.downloadFile(remotePath, localDir, fi.ModTime()); err != nil {
			if ctx.Err() != nil {
				return count, ctx.Err()
			}
			return count, fmt.Errorf("sftp download %s: %w", remotePath, err)
		}
		count++
	}

	return count, nil
}

func (s *SFTPConnector) downloadFile(remotePath, localDir string, modTime time.Time) error {
	r, err := s.client.Open(remotePath)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = saveRemoteFile(remotePath, localDir, modTime, r)
	return err
}

func (s *SFTPConnector) Close() error {
	if s.client == nil {
		return nil
	}

	err := s.client.Close()
	if s.ssh != nil {
		if cerr := s.ssh.Close(); err == nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	s.client, s.ssh, s.conn = nil, nil, nil
	return err
}
