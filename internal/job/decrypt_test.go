package job

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/yarkm13/ftpsync/internal/crypto"
)

func newEncryptedCredentials(t *testing.T, key string) Credentials {
	t.Helper()
	raw, err := crypto.ParseKey(key)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	enc := func(s string) string {
		out, err := crypto.Encrypt(s, raw)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		return out
	}
	return Credentials{
		UserName:           enc("ftpuser"),
		Password:           enc("hunter2"),
		PrivateKeyPassword: enc("passphrase"),
	}
}

func TestDecryptorDisabledPassesThrough(t *testing.T) {
	logger, hook := test.NewNullLogger()
	in := Credentials{UserName: "user", Password: "  raw\tpass ", PrivateKeyPassword: "pp"}

	out, err := Decryptor{Enabled: false, Key: "garbage"}.Decrypt(in, "nightly", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("expected untouched credentials, got %+v", out)
	}
	if len(hook.Entries) != 0 {
		t.Fatalf("expected no log entries, got %d", len(hook.Entries))
	}
}

func TestDecryptorEnabled(t *testing.T) {
	key, _ := crypto.NewKey()
	in := newEncryptedCredentials(t, key)
	logger, _ := test.NewNullLogger()

	out, err := Decryptor{Enabled: true, Key: key}.Decrypt(in, "nightly", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Credentials{UserName: "ftpuser", Password: "hunter2", PrivateKeyPassword: "passphrase"}
	if out != want {
		t.Fatalf("expected %+v, got %+v", want, out)
	}
}

func TestDecryptorFailsOpenPerField(t *testing.T) {
	key, _ := crypto.NewKey()
	in := newEncryptedCredentials(t, key)
	in.Password = "not-encrypted"
	logger, hook := test.NewNullLogger()

	out, err := Decryptor{Enabled: true, Key: key}.Decrypt(in, "nightly", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Password != "not-encrypted" {
		t.Fatalf("expected raw password, got %q", out.Password)
	}
	if out.UserName != "ftpuser" || out.PrivateKeyPassword != "passphrase" {
		t.Fatalf("other fields should still be decrypted: %+v", out)
	}

	if len(hook.Entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(hook.Entries))
	}
	entry := hook.LastEntry()
	if entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warning level, got %v", entry.Level)
	}
	if entry.Data["field"] != KeyPassword || entry.Data["job"] != "nightly" {
		t.Fatalf("unexpected log fields %v", entry.Data)
	}
}

func TestDecryptorSkipsEmptyOptionalSecrets(t *testing.T) {
	key, _ := crypto.NewKey()
	in := newEncryptedCredentials(t, key)
	in.Password = ""
	in.PrivateKeyPassword = ""
	logger, hook := test.NewNullLogger()

	out, err := Decryptor{Enabled: true, Key: key}.Decrypt(in, "nightly", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.UserName != "ftpuser" || out.Password != "" || out.PrivateKeyPassword != "" {
		t.Fatalf("unexpected credentials %+v", out)
	}
	if len(hook.Entries) != 0 {
		t.Fatalf("expected no warnings, got %d", len(hook.Entries))
	}
}

func TestDecryptorBadKey(t *testing.T) {
	in := Credentials{UserName: "u", Password: "p"}
	logger, hook := test.NewNullLogger()

	out, err := Decryptor{Enabled: true, Key: "not-a-key"}.Decrypt(in, "nightly", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("expected raw values, got %+v", out)
	}
	if len(hook.Entries) != 2 {
		t.Fatalf("expected a warning for user name and password, got %d", len(hook.Entries))
	}
}

func TestDecryptorStrict(t *testing.T) {
	key, _ := crypto.NewKey()
	in := newEncryptedCredentials(t, key)
	in.Password = "not-encrypted"
	logger, _ := test.NewNullLogger()

	_, err := Decryptor{Enabled: true, Key: key, Strict: true}.Decrypt(in, "nightly", logger)

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Field != KeyPassword {
		t.Fatalf("expected field %s, got %s", KeyPassword, cfgErr.Field)
	}
}
