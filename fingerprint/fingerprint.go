package fingerprint

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"
)

// Provider yields the opaque device fingerprint attached to scan attempts.
// The server uses it for anti-abuse correlation; the client never interprets
// it.
type Provider interface {
	Fingerprint() string
}

// Static is a fixed fingerprint, mostly for tests.
type Static string

func (s Static) Fingerprint() string {
	return string(s)
}

// FileProvider persists a generated install ID so the fingerprint is stable
// across restarts of the same installation.
type FileProvider struct {
	path string

	once sync.Once
	id   string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{
		path: path,
	}
}

func (p *FileProvider) Fingerprint() string {
	p.once.Do(func() {
		if raw, err := os.ReadFile(p.path); err == nil {
			if id := strings.TrimSpace(string(raw)); id != "" {
				p.id = id
				return
			}
		}

		p.id = shortuuid.New()

		if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
			logrus.WithError(err).Warn("could not create fingerprint dir, using ephemeral install id")
			return
		}
		if err := os.WriteFile(p.path, []byte(p.id+"\n"), 0o600); err != nil {
			logrus.WithError(err).Warn("could not persist install id, fingerprint will rotate on restart")
		}
	})

	return p.id
}
