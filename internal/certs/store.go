package certs

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Relay/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	CertFile = "cert.pem"
	KeyFile  = "key.pem"
)

// Store keeps the material served by the TLS listener and persists it under
// Dir. Regeneration replaces the material wholesale; nothing is kept for
// rollback.
type Store struct {
	Dir       string
	Generator Generator
	Metrics   *metrics.Metrics
	// IP resolves the address the certificate is issued for.
	IP func() string

	// regen serializes Regenerate and Reload so a reload never sees a
	// half-written pair of our own.
	regen    sync.Mutex
	mu       sync.Mutex
	material Material
	live     atomic.Pointer[tls.Certificate]
}

func NewStore(dir string, gen Generator, m *metrics.Metrics) *Store {
	if gen == nil {
		gen = NewSelfSigned()
	}
	return &Store{Dir: dir, Generator: gen, Metrics: m, IP: NetworkIP}
}

func (s *Store) certPath() string { return filepath.Join(s.Dir, CertFile) }
func (s *Store) keyPath() string  { return filepath.Join(s.Dir, KeyFile) }

// Load installs the material found on disk, generating and persisting a new
// pair when the files are missing or unusable.
func (s *Store) Load() error {
	m, err := s.readDisk()
	if err == nil {
		if err = s.Install(m); err == nil {
			log.Info().Str("module", "certs").Str("dir", s.Dir).Msg("loaded certificate")
			return nil
		}
	}
	log.Warn().Err(err).Str("module", "certs").Str("dir", s.Dir).Msg("no usable certificate on disk, generating one")
	_, err = s.Regenerate()
	return err
}

// Regenerate issues new material for the server address, persists it and
// installs it into the live listener. Concurrent calls run one at a time.
func (s *Store) Regenerate() (string, error) {
	s.regen.Lock()
	defer s.regen.Unlock()

	ip := FallbackIP
	if s.IP != nil {
		ip = s.IP()
	}
	m, err := s.Generator.Generate(ip)
	if err != nil {
		return ip, fmt.Errorf("generate certificate: %w", err)
	}
	if err := s.persist(m); err != nil {
		return ip, fmt.Errorf("persist certificate: %w", err)
	}
	if err := s.Install(m); err != nil {
		return ip, err
	}
	log.Info().Str("module", "certs").Str("ip", ip).Msg("certificate regenerated")
	return ip, nil
}

// Install parses m and swaps it in. Handshakes already in progress keep the
// previous certificate.
func (s *Store) Install(m Material) error {
	pair, err := m.KeyPair()
	if err != nil {
		return fmt.Errorf("parse key pair: %w", err)
	}
	s.mu.Lock()
	s.material = m
	s.live.Store(&pair)
	s.mu.Unlock()
	s.Metrics.CertificateInstalled()
	return nil
}

// Reload re-reads the files and installs them if they differ from the live
// material. A failed reload keeps the previous material. While a
// regeneration is writing the files it does nothing; the regeneration
// installs the new pair itself.
func (s *Store) Reload() (bool, error) {
	if !s.regen.TryLock() {
		return false, nil
	}
	defer s.regen.Unlock()

	m, err := s.readDisk()
	if err != nil {
		return false, err
	}
	cur := s.Current()
	if bytes.Equal(cur.CertPEM, m.CertPEM) && bytes.Equal(cur.KeyPEM, m.KeyPEM) {
		return false, nil
	}
	if err := s.Install(m); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Current() Material {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.material
}

// GetCertificate is meant for tls.Config.GetCertificate.
func (s *Store) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	c := s.live.Load()
	if c == nil {
		return nil, ErrNoCertificate
	}
	return c, nil
}

// TLSConfig returns a server config that always serves the live material.
func (s *Store) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: s.GetCertificate,
	}
}

func (s *Store) readDisk() (Material, error) {
	certPEM, err := os.ReadFile(s.certPath())
	if err != nil {
		return Material{}, err
	}
	keyPEM, err := os.ReadFile(s.keyPath())
	if err != nil {
		return Material{}, err
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return Material{}, errors.New("empty certificate file")
	}
	return Material{CertPEM: certPEM, KeyPEM: keyPEM}, nil
}

func (s *Store) persist(m Material) error {
	if s.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(s.keyPath(), m.KeyPEM, 0o600); err != nil {
		return err
	}
	return writeFileAtomic(s.certPath(), m.CertPEM, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
