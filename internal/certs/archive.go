package certs

import (
	"archive/zip"
	"bytes"
	"encoding/pem"
	"fmt"
)

// Names of the entries in the downloadable archive.
const (
	ArchiveName     = "certificates.zip"
	ArchiveCertName = "certificate.crt"
	ArchiveKeyName  = "privateKey.crt"
)

// Archive packs the DER forms of the certificate and key into a zip file.
func Archive(m Material) ([]byte, error) {
	certDER, err := derOf(m.CertPEM)
	if err != nil {
		return nil, fmt.Errorf("certificate: %w", err)
	}
	keyDER, err := derOf(m.KeyPEM)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct {
		name string
		data []byte
	}{
		{ArchiveCertName, certDER},
		{ArchiveKeyName, keyDER},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func derOf(p []byte) ([]byte, error) {
	block, _ := pem.Decode(p)
	if block == nil {
		return nil, fmt.Errorf("no PEM block")
	}
	return block.Bytes, nil
}
