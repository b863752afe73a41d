// Package job implements the scheduled FTP/SFTP download job: it validates the job
// data map, decrypts credentials, runs one connect + fetch pass against a remote
// server and classifies failures for the scheduler.
package job

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yarkm13/ftpsync/internal/transfer"
)

const (
	DefaultConnectTimeout  = 30 * time.Second
	DefaultTransferTimeout = 30 * time.Minute
)

// Job downloads recent files with the configured extensions from a remote server.
// A Job holds no per-execution state and is safe for concurrent Execute calls.
type Job struct {
	provider        transfer.Provider
	decryptor       Decryptor
	log             logrus.FieldLogger
	connectTimeout  time.Duration
	transferTimeout time.Duration
	now             func() time.Time
}

type Option func(*Job)

func WithDecryptor(d Decryptor) Option {
	return func(j *Job) { j.decryptor = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(j *Job) { j.log = log }
}

// WithTimeouts bounds Connect and FetchMatching. Zero disables a bound.
func WithTimeouts(connect, transfer time.Duration) Option {
	return func(j *Job) {
		j.connectTimeout = connect
		j.transferTimeout = transfer
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

func New(provider transfer.Provider, opts ...Option) *Job {
	j := &Job{
		provider:        provider,
		log:             logrus.StandardLogger(),
		connectTimeout:  DefaultConnectTimeout,
		transferTimeout: DefaultTransferTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Execute runs one pass of the job. It returns nil or an *ExecutionError whose
// Retryable flag is false for configuration problems and true for connection and
// transfer failures.
func (j *Job) Execute(ctx context.Context, jobName string, data map[string]string) error {
	log := j.log.WithField("job", jobName)

	params, err := ResolveParameters(data, jobName)
	if err != nil {
		return j.fail(log, jobName, err, false)
	}
	log = log.WithFields(logrus.Fields{
		"protocol": params.Protocol,
		"host":     params.Host,
	})
	log.Debug("parameters resolved")

	creds, err := j.decryptor.Decrypt(Credentials{
		UserName:           params.UserName,
		Password:           params.Password,
		PrivateKeyPassword: params.SSHPrivateKeyPassword,
	}, jobName, log)
	if err != nil {
		return j.fail(log, jobName, err, false)
	}
	params.UserName = creds.UserName
	params.Password = creds.Password
	params.SSHPrivateKeyPassword = creds.PrivateKeyPassword
	log.Debug("credentials ready")

	n, err := j.download(ctx, params, log)
	if err != nil {
		return j.fail(log, jobName, err, true)
	}

	log.WithFields(logrus.Fields{
		"files":      n,
		"local_dir":  params.LocalDirectoryPath,
		"remote_dir": params.RemoteDirectoryPath,
	}).Info("download complete")
	return nil
}

func (j *Job) download(ctx context.Context, p Parameters, log logrus.FieldLogger) (int, error) {
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))

	conn, err := j.provider.New(p.Protocol)
	if err != nil {
		return 0, &ConnectionError{Host: addr, Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithError(err).Warn("closing connection")
		}
	}()

	connectCtx, cancel := withTimeout(ctx, j.connectTimeout)
	err = conn.Connect(connectCtx, p.Endpoint())
	cancel()
	if err != nil {
		return 0, &ConnectionError{Host: addr, Err: err}
	}
	log.Debug("connected")

	sel := p.Selector()
	sel.Now = j.now

	fetchCtx, cancel := withTimeout(ctx, j.transferTimeout)
	defer cancel()
	n, err := conn.FetchMatching(fetchCtx, p.RemoteDirectoryPath, p.LocalDirectoryPath, sel)
	if err != nil {
		return n, &TransferError{RemoteDir: p.RemoteDirectoryPath, Err: err}
	}
	return n, nil
}

func (j *Job) fail(log logrus.FieldLogger, jobName string, err error, retryable bool) error {
	log.WithError(err).WithField("retryable", retryable).Error("job failed")
	return &ExecutionError{JobName: jobName, Retryable: retryable, Err: err}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
