package transfer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus/hooks/test"
)

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// newInMemorySFTP connects an sftp client to an in-memory request server.
func newInMemorySFTP(t *testing.T) *sftp.Client {
	t.Helper()

	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	server := sftp.NewRequestServer(pipeConn{serverRead, serverWrite}, sftp.InMemHandler())
	go func() { _ = server.Serve() }()

	client, err := sftp.NewClientPipe(clientRead, clientWrite)
	if err != nil {
		t.Fatalf("start sftp client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client
}

func putRemoteFile(t *testing.T, c *sftp.Client, name, content string) {
	t.Helper()
	f, err := c.Create(name)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", name, err)
	}
}

func seedRemote(t *testing.T, c *sftp.Client) {
	t.Helper()
	if err := c.Mkdir("/outgoing"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := c.Mkdir("/outgoing/archive.csv"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	putRemoteFile(t, c, "/outgoing/a.csv", "1,2,3\n")
	putRemoteFile(t, c, "/outgoing/B.CSV", "4,5,6\n")
	putRemoteFile(t, c, "/outgoing/notes.txt", "skip me")
}

func TestSFTPConnectorFetchMatching(t *testing.T) {
	client := newInMemorySFTP(t)
	seedRemote(t, client)

	logger, _ := test.NewNullLogger()
	conn := &SFTPConnector{client: client, log: logger}
	localDir := t.TempDir()

	n, err := conn.FetchMatching(context.Background(), "/outgoing", localDir, NewSelector([]string{"csv"}, 24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 files, got %d", n)
	}

	for name, want := range map[string]string{"a.csv": "1,2,3\n", "B.CSV": "4,5,6\n"} {
		got, err := os.ReadFile(filepath.Join(localDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("%s: expected %q, got %q", name, want, got)
		}
	}
	if _, err := os.Stat(filepath.Join(localDir, "notes.txt")); !os.IsNotExist(err) {
		t.Fatalf("notes.txt should not be downloaded, stat err: %v", err)
	}
}

func TestSFTPConnectorFetchMatchingSkipsStaleFiles(t *testing.T) {
	client := newInMemorySFTP(t)
	seedRemote(t, client)

	logger, _ := test.NewNullLogger()
	conn := &SFTPConnector{client: client, log: logger}

	sel := NewSelector([]string{"csv", "txt"}, 24*time.Hour)
	sel.Now = func() time.Time { return time.Now().Add(30 * time.Hour) }

	n, err := conn.FetchMatching(context.Background(), "/outgoing", t.TempDir(), sel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no files, got %d", n)
	}
}

func TestSFTPConnectorFetchMatchingMissingDir(t *testing.T) {
	client := newInMemorySFTP(t)

	logger, _ := test.NewNullLogger()
	conn := &SFTPConnector{client: client, log: logger}

	if _, err := conn.FetchMatching(context.Background(), "/nope", t.TempDir(), NewSelector([]string{"csv"}, time.Hour)); err == nil {
		t.Fatal("expected error for missing remote directory")
	}
}

func TestConnectorsRequireConnect(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sel := NewSelector([]string{"csv"}, time.Hour)

	for _, c := range []Connector{&FTPConnector{log: logger}, &SFTPConnector{log: logger}} {
		if _, err := c.FetchMatching(context.Background(), "", t.TempDir(), sel); err == nil {
			t.Fatalf("%T: expected error before Connect", c)
		}
		if err := c.Close(); err != nil {
			t.Fatalf("%T: Close on unconnected connector: %v", c, err)
		}
	}
}

func TestSFTPAuthMethodsPrefersPrivateKey(t *testing.T) {
	logger, _ := test.NewNullLogger()
	conn := &SFTPConnector{log: logger}

	_, err := conn.authMethods(Endpoint{
		Password:       "secret",
		PrivateKeyPath: filepath.Join(t.TempDir(), "missing_key"),
	})
	if err == nil {
		t.Fatal("expected the missing key file to be read and fail, not a password fallback")
	}

	methods, err := conn.authMethods(Endpoint{Password: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("expected password and keyboard-interactive methods, got %d", len(methods))
	}
}
