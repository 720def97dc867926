// Package certtest writes throwaway self-signed certificates for tests.
package certtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const rsaBits = 2048

var defaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// Pair is a certificate and key written to disk in PEM format, plus a pool
// trusting the certificate.
type Pair struct {
	CertFile string
	KeyFile  string
	CertPEM  []byte
	KeyPEM   []byte
	Pool     *x509.CertPool
}

// Write generates a self-signed certificate valid for hosts (localhost and
// the loopback addresses when empty) and stores it in dir as localhost.pem
// and localhost-key.pem.
//
// Based on generate_cert:
// https://go.dev/src/crypto/tls/generate_cert.go
func Write(t testing.TB, dir string, hosts ...string) Pair {
	t.Helper()
	if len(hosts) == 0 {
		hosts = defaultHosts
	}

	priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
	require.NoError(t, err)

	// must be unique to avoid errors when serial/issuer is reused with different keys
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 63))
	require.NoError(t, err)
	serial.Add(serial, big.NewInt(1))

	notBefore := time.Now().Add(-5 * time.Minute).UTC()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Example Inc"},
			CommonName:   hosts[0],
		},
		NotBefore: notBefore,
		NotAfter:  notBefore.Add(24 * time.Hour),

		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pair := Pair{
		CertFile: filepath.Join(dir, "localhost.pem"),
		KeyFile:  filepath.Join(dir, "localhost-key.pem"),
		CertPEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:   pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)}),
		Pool:     x509.NewCertPool(),
	}
	pair.Pool.AddCert(leaf)

	require.NoError(t, os.WriteFile(pair.CertFile, pair.CertPEM, 0o600))
	require.NoError(t, os.WriteFile(pair.KeyFile, pair.KeyPEM, 0o600))
	return pair
}
