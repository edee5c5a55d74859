// Package ca implements the Certificate Authority (C1): a self-signed
// root generated on first launch and per-host leaf certificates minted
// on demand for the MITM proxy, signed by that root.
package ca

import (
	"container/list"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RootKeyBits is the root key size. RSA-2048 is chosen over Ed25519
// for broadest client-stack compatibility terminating MITM'd LLM API
// connections; see DESIGN.md.
const RootKeyBits = 2048

// LeafValidBefore and LeafValidAfter bound a minted leaf's validity
// window relative to mint time, per spec.md §4.1.
const (
	LeafValidAfter  = -1 * time.Hour
	LeafValidBefore = 397 * 24 * time.Hour
)

// LeafCacheCapacity is the in-memory leaf LRU size; eviction just
// costs a remint on the next connection.
const LeafCacheCapacity = 1024

// ErrKeyUnreadable is returned by Load when root.key exists but cannot
// be parsed; callers in proxy mode must treat this as fatal
// (ProxyStart(KeyError) in spec.md §4.1's failure-mode table).
var ErrKeyUnreadable = errors.New("ca: root key on disk is unreadable")

// Authority mints and caches per-host TLS leaf certificates under a
// locally generated root.
type Authority struct {
	rootCert *x509.Certificate
	rootKey  *rsa.PrivateKey
	rootTLS  tls.Certificate

	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List
	serial uint64
}

type cachedLeaf struct {
	host string
	cert tls.Certificate
}

// LoadOrGenerate reads root.key/root.crt from dir, generating and
// persisting a fresh root if either is missing. Files are written
// 0600; an existing key that fails to parse returns ErrKeyUnreadable.
func LoadOrGenerate(dir string) (*Authority, error) {
	keyPath := filepath.Join(dir, "root.key")
	certPath := filepath.Join(dir, "root.crt")

	keyBytes, keyErr := os.ReadFile(keyPath)
	certBytes, certErr := os.ReadFile(certPath)
	if keyErr == nil && certErr == nil {
		return loadRoot(keyBytes, certBytes)
	}
	if keyErr != nil && !os.IsNotExist(keyErr) {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnreadable, keyErr)
	}
	if certErr != nil && !os.IsNotExist(certErr) {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnreadable, certErr)
	}

	return generateRoot(dir)
}

func loadRoot(keyPEM, certPEM []byte) (*Authority, error) {
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnreadable, err)
	}
	cert, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnreadable, err)
	}
	key, ok := tlsCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: root key is not RSA", ErrKeyUnreadable)
	}
	return newAuthority(cert, key, tlsCert), nil
}

func generateRoot(dir string) (*Authority, error) {
	key, err := rsa.GenerateKey(rand.Reader, RootKeyBits)
	if err != nil {
		return nil, err
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "Aegis Local Gateway Root"},
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageCRLSign,
		IsCA:         true,
		BasicConstraintsValid: true,
		MaxPathLen:            0,
		MaxPathLenZero:        true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	if err := persistRoot(dir, key, der); err != nil {
		return nil, err
	}

	tlsCert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return newAuthority(cert, key, tlsCert), nil
}

func persistRoot(dir string, key *rsa.PrivateKey, certDER []byte) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(filepath.Join(dir, "root.key"), keyPEM, 0600); err != nil {
		return err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	return os.WriteFile(filepath.Join(dir, "root.crt"), certPEM, 0600)
}

func newAuthority(cert *x509.Certificate, key *rsa.PrivateKey, tlsCert tls.Certificate) *Authority {
	return &Authority{
		rootCert: cert,
		rootKey:  key,
		rootTLS:  tlsCert,
		cache:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// RootPEM returns the root certificate in PEM form, for the UI's
// OS-specific install hint.
func (a *Authority) RootPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: a.rootCert.Raw})
}

// LeafFor returns a cached leaf for host, minting and caching one if
// absent. Safe for concurrent use by the proxy's per-connection
// goroutines.
func (a *Authority) LeafFor(host string) (tls.Certificate, error) {
	a.mu.Lock()
	if el, ok := a.cache[host]; ok {
		a.order.MoveToFront(el)
		leaf := el.Value.(*cachedLeaf).cert
		a.mu.Unlock()
		return leaf, nil
	}
	a.mu.Unlock()

	leaf, err := a.mintLeaf(host)
	if err != nil {
		return tls.Certificate{}, err
	}

	a.mu.Lock()
	el := a.order.PushFront(&cachedLeaf{host: host, cert: leaf})
	a.cache[host] = el
	if a.order.Len() > LeafCacheCapacity {
		oldest := a.order.Back()
		if oldest != nil {
			a.order.Remove(oldest)
			delete(a.cache, oldest.Value.(*cachedLeaf).host)
		}
	}
	a.mu.Unlock()

	return leaf, nil
}

func (a *Authority) mintLeaf(host string) (tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, RootKeyBits)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := a.nextSerial()
	if err != nil {
		return tls.Certificate{}, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host},
		DNSNames:     []string{host, "*." + host},
		NotBefore:    now.Add(LeafValidAfter),
		NotAfter:     now.Add(LeafValidBefore),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, a.rootCert, &key.PublicKey, a.rootKey)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{der, a.rootCert.Raw},
		PrivateKey:  key,
	}, nil
}

// nextSerial combines a random 128-bit value with a per-process
// counter so concurrently minted leafs never collide even if the CSPRNG
// draws were to repeat, satisfying spec.md §4.1's "serials must be
// unique" contract.
func (a *Authority) nextSerial() (*big.Int, error) {
	base, err := randomSerial()
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.serial++
	counter := a.serial
	a.mu.Unlock()
	return base.Add(base, big.NewInt(int64(counter))), nil
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, limit)
}
