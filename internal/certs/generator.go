package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

var ErrNoCertificate = errors.New("no certificate installed")

// Material is a certificate and its private key, both PEM encoded.
type Material struct {
	CertPEM []byte
	KeyPEM  []byte
}

// KeyPair parses the material into a certificate usable by crypto/tls.
func (m Material) KeyPair() (tls.Certificate, error) {
	return tls.X509KeyPair(m.CertPEM, m.KeyPEM)
}

// Generator produces fresh material for the given address.
type Generator interface {
	Generate(ip string) (Material, error)
}

// SelfSigned issues a self-signed RSA certificate whose common name is the
// server address.
type SelfSigned struct {
	Bits     int
	Validity time.Duration
	now      func() time.Time
}

func NewSelfSigned() *SelfSigned {
	return &SelfSigned{Bits: 2048, Validity: 10 * 365 * 24 * time.Hour, now: time.Now}
}

func (g *SelfSigned) Generate(ip string) (Material, error) {
	bits := g.Bits
	if bits == 0 {
		bits = 2048
	}
	now := time.Now
	if g.now != nil {
		now = g.now
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return Material{}, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return Material{}, fmt.Errorf("generate serial: %w", err)
	}

	subject := pkix.Name{
		CommonName:   ip,
		Country:      []string{"ES"},
		Province:     []string{"Madrid"},
		Locality:     []string{"Madrid"},
		Organization: []string{"Anjana"},
	}
	notBefore := now()
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		Issuer:                subject,
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(g.Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	if parsed := net.ParseIP(ip); parsed != nil {
		tmpl.IPAddresses = []net.IP{parsed}
	} else if ip != "" {
		tmpl.DNSNames = []string{ip}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return Material{}, fmt.Errorf("create certificate: %w", err)
	}

	return Material{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}),
	}, nil
}
