package job

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yarkm13/ftpsync/internal/transfer"
)

// Keys of the job data map.
const (
	KeyHost                  = "ftpHost"               // REQUIRED
	KeyServerPort            = "serverPort"            // Optional
	KeyUserName              = "userName"              // Optional
	KeyPassword              = "password"              // Optional
	KeyLocalDirectoryPath    = "localDirectoryPath"    // REQUIRED
	KeyRemoteDirectoryPath   = "remoteDirectoryPath"   // Optional
	KeyCutOff                = "cutOffTimeSpan"        // Optional
	KeyFileExtensions        = "fileExtensions"        // REQUIRED, single or comma separated
	KeySSHPrivateKeyPath     = "sshPrivateKeyPath"     // Optional
	KeySSHPrivateKeyPassword = "sshPrivateKeyPassword" // Optional
	KeyProtocol              = "protocol"              // Optional, ftp or sftp
)

const (
	DefaultFTPPort  = 21
	DefaultSFTPPort = 22
	DefaultCutOff   = 24 * time.Hour
)

// Parameters is the validated input of one execution.
type Parameters struct {
	Protocol              string
	Host                  string
	Port                  int
	UserName              string
	Password              string
	LocalDirectoryPath    string
	RemoteDirectoryPath   string
	CutOff                time.Duration
	FileExtensions        []string
	SSHPrivateKeyPath     string
	SSHPrivateKeyPassword string
}

// ResolveParameters validates data and applies defaults.
func ResolveParameters(data map[string]string, jobName string) (Parameters, error) {
	var p Parameters
	var err error

	if p.Host, err = requiredParameter(data, KeyHost, jobName); err != nil {
		return Parameters{}, err
	}
	if p.LocalDirectoryPath, err = requiredParameter(data, KeyLocalDirectoryPath, jobName); err != nil {
		return Parameters{}, err
	}
	rawExtensions, err := requiredParameter(data, KeyFileExtensions, jobName)
	if err != nil {
		return Parameters{}, err
	}

	p.UserName = secretParameter(data, KeyUserName)
	p.Password = secretParameter(data, KeyPassword)
	p.RemoteDirectoryPath = optionalParameter(data, KeyRemoteDirectoryPath)
	p.SSHPrivateKeyPath = optionalParameter(data, KeySSHPrivateKeyPath)
	p.SSHPrivateKeyPassword = secretParameter(data, KeySSHPrivateKeyPassword)

	if p.FileExtensions = splitExtensions(rawExtensions); len(p.FileExtensions) == 0 {
		return Parameters{}, &ConfigurationError{Field: KeyFileExtensions, JobName: jobName,
			Err: fmt.Errorf("%w: no extension in %q", ErrInvalid, rawExtensions)}
	}

	p.Protocol = strings.ToLower(optionalParameter(data, KeyProtocol))
	switch p.Protocol {
	case "":
		p.Protocol = transfer.ProtocolFTP
		if p.SSHPrivateKeyPath != "" {
			p.Protocol = transfer.ProtocolSFTP
		}
	case transfer.ProtocolFTP, transfer.ProtocolSFTP:
	default:
		return Parameters{}, &ConfigurationError{Field: KeyProtocol, JobName: jobName,
			Err: fmt.Errorf("%w: unsupported protocol %q", ErrInvalid, p.Protocol)}
	}

	p.Port = DefaultFTPPort
	if p.Protocol == transfer.ProtocolSFTP {
		p.Port = DefaultSFTPPort
	}
	if raw := optionalParameter(data, KeyServerPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Parameters{}, &ConfigurationError{Field: KeyServerPort, JobName: jobName,
				Err: fmt.Errorf("%w: port %q", ErrInvalid, raw)}
		}
		p.Port = port
	}

	p.CutOff = DefaultCutOff
	if raw := optionalParameter(data, KeyCutOff); raw != "" {
		cutOff, err := ParseCutOff(raw)
		if err != nil {
			return Parameters{}, &ConfigurationError{Field: KeyCutOff, JobName: jobName, Err: err}
		}
		p.CutOff = cutOff
	}

	return p, nil
}

// Selector builds the file selection policy for these parameters.
func (p Parameters) Selector() transfer.Selector {
	return transfer.NewSelector(p.FileExtensions, p.CutOff)
}

// Endpoint builds the connection target for these parameters.
func (p Parameters) Endpoint() transfer.Endpoint {
	return transfer.Endpoint{
		Protocol:           p.Protocol,
		Host:               p.Host,
		Port:               p.Port,
		UserName:           p.UserName,
		Password:           p.Password,
		PrivateKeyPath:     p.SSHPrivateKeyPath,
		PrivateKeyPassword: p.SSHPrivateKeyPassword,
	}
}

func optionalParameter(data map[string]string, name string) string {
	return strings.TrimSpace(data[name])
}

// secretParameter returns credentials exactly as supplied.
func secretParameter(data map[string]string, name string) string {
	return data[name]
}

func requiredParameter(data map[string]string, name, jobName string) (string, error) {
	value := optionalParameter(data, name)
	if value == "" {
		return "", &ConfigurationError{Field: name, JobName: jobName, Err: ErrMissing}
	}
	return value, nil
}

func splitExtensions(raw string) []string {
	seen := make(map[string]struct{})
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		ext := transfer.NormalizeExtension(part)
		if ext == "" {
			continue
		}
		if _, dup := seen[ext]; dup {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	return exts
}

// maxCutOffDays keeps a day count inside time.Duration.
const maxCutOffDays = math.MaxInt64 / int64(24*time.Hour)

// [d.]hh:mm[:ss[.fffffff]]
var clockSpan = regexp.MustCompile(`^(?:(\d+)\.)?(\d{1,2}):(\d{1,2})(?::(\d{1,2})(?:\.(\d{1,7}))?)?$`)

// ParseCutOff accepts Go durations ("36h", "90m"), day/clock spans ("1.00:00:00",
// "06:30") and bare day counts ("2").
func ParseCutOff(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)

	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative cut-off %q", ErrInvalid, raw)
		}
		return d, nil
	}

	if days, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if days < 0 {
			return 0, fmt.Errorf("%w: negative cut-off %q", ErrInvalid, raw)
		}
		if days > maxCutOffDays {
			return 0, fmt.Errorf("%w: cut-off too large %q", ErrInvalid, raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	m := clockSpan.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("%w: cut-off format %q", ErrInvalid, raw)
	}

	days, err := strconv.ParseInt(orZero(m[1]), 10, 64)
	if err != nil || days > maxCutOffDays {
		return 0, fmt.Errorf("%w: cut-off too large %q", ErrInvalid, raw)
	}
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.Atoi(orZero(m[4]))
	if hours > 23 || minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("%w: cut-off out of range %q", ErrInvalid, raw)
	}

	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	if frac := m[5]; frac != "" {
		ticks, _ := strconv.Atoi(frac + strings.Repeat("0", 7-len(frac)))
		d += time.Duration(ticks) * 100 * time.Nanosecond
	}
	if d < 0 {
		// wrapped past the largest duration
		return 0, fmt.Errorf("%w: cut-off too large %q", ErrInvalid, raw)
	}
	return d, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
