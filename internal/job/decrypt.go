package job

import (
	"github.com/sirupsen/logrus"

	"github.com/yarkm13/ftpsync/internal/crypto"
)

// Credentials are the job parameters that may be stored encrypted.
type Credentials struct {
	UserName           string
	Password           string
	PrivateKeyPassword string
}

// Decryptor reverses credential encryption when Enabled.
//
// A field that fails to decrypt is logged and passed through unchanged, so the
// problem surfaces at connect time with the host in context. Strict turns such a
// failure into a ConfigurationError instead.
type Decryptor struct {
	Enabled bool
	// Key is the base64 process-wide key (setting SchedulerEncryptionKey).
	Key    string
	Strict bool
}

func (d Decryptor) Decrypt(in Credentials, jobName string, log logrus.FieldLogger) (Credentials, error) {
	if !d.Enabled {
		return in, nil
	}

	key, keyErr := crypto.ParseKey(d.Key)
	out := in

	decrypt := func(field, value string) (string, error) {
		if keyErr != nil {
			return value, d.fail(field, jobName, keyErr, log)
		}
		plain, err := crypto.Decrypt(value, key)
		if err != nil {
			return value, d.fail(field, jobName, err, log)
		}
		return plain, nil
	}

	var err error
	// the user name is always attempted, the optional secrets only when present
	if out.UserName, err = decrypt(KeyUserName, in.UserName); err != nil {
		return in, err
	}
	if in.Password != "" {
		if out.Password, err = decrypt(KeyPassword, in.Password); err != nil {
			return in, err
		}
	}
	if in.PrivateKeyPassword != "" {
		if out.PrivateKeyPassword, err = decrypt(KeySSHPrivateKeyPassword, in.PrivateKeyPassword); err != nil {
			return in, err
		}
	}

	return out, nil
}

func (d Decryptor) fail(field, jobName string, err error, log logrus.FieldLogger) error {
	if d.Strict {
		return &ConfigurationError{Field: field, JobName: jobName, Err: err}
	}
	log.WithFields(logrus.Fields{
		"job":   jobName,
		"field": field,
	}).WithError(err).Warn("credential decryption failed, using value as supplied")
	return nil
}
