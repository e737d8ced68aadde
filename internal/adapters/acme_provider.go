package adapters

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"golang.org/x/time/rate"

	"github.com/Perkybeet/wam/internal/core/domain"
)

// acmeUser satisfies lego's registration.User.
type acmeUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *acmeUser) GetEmail() string                        { return u.email }
func (u *acmeUser) GetRegistration() *registration.Resource { return u.registration }
func (u *acmeUser) GetPrivateKey() crypto.PrivateKey        { return u.key }

// webrootProvider answers HTTP-01 challenges by writing the token under the
// shared webroot that every rendered site config exposes at
// /.well-known/acme-challenge/.
type webrootProvider struct {
	webRoot string
}

func (p *webrootProvider) Present(domainName, token, keyAuth string) error {
	full := filepath.Join(p.webRoot, http01.ChallengePath(token))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(keyAuth), 0o644)
}

func (p *webrootProvider) CleanUp(domainName, token, keyAuth string) error {
	err := os.Remove(filepath.Join(p.webRoot, http01.ChallengePath(token)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// AcmeProvider implements domain.CertificateManager over the ACME HTTP-01
// flow. Issuance is throttled to stay inside CA rate limits: a burst of
// create calls must not burn through the per-domain quota.
type AcmeProvider struct {
	directoryURL string
	tlsDir       string
	webRoot      string
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewAcmeProvider builds the provider. tlsDir receives the issued
// certificate material (tlsDir/<domain>/fullchain.pem, privkey.pem).
func NewAcmeProvider(directoryURL, tlsDir, webRoot string, logger *slog.Logger) *AcmeProvider {
	return &AcmeProvider{
		directoryURL: directoryURL,
		tlsDir:       tlsDir,
		webRoot:      webRoot,
		limiter:      rate.NewLimiter(rate.Every(30*time.Second), 2),
		logger:       logger,
	}
}

// CertPath returns where the fullchain for a domain is installed.
func (p *AcmeProvider) CertPath(domainName string) string {
	return filepath.Join(p.tlsDir, domainName, "fullchain.pem")
}

// KeyPath returns where the private key for a domain is installed.
func (p *AcmeProvider) KeyPath(domainName string) string {
	return filepath.Join(p.tlsDir, domainName, "privkey.pem")
}

func (p *AcmeProvider) newClient(email string) (*lego.Client, *acmeUser, error) {
	accountKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate account key: %w", err)
	}
	user := &acmeUser{email: email, key: accountKey}

	cfg := lego.NewConfig(user)
	cfg.CADirURL = p.directoryURL
	cfg.Certificate.KeyType = certcrypto.EC256

	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create acme client: %w", err)
	}
	if err := client.Challenge.SetHTTP01Provider(&webrootProvider{webRoot: p.webRoot}); err != nil {
		return nil, nil, fmt.Errorf("failed to set http-01 provider: %w", err)
	}
	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register acme account: %w", err)
	}
	user.registration = reg
	return client, user, nil
}

// Issue obtains a certificate for the domain and installs it under tlsDir.
func (p *AcmeProvider) Issue(ctx context.Context, domainName, email string) (*domain.CertificateInfo, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("issuance throttled: %w", err)
	}
	p.logger.Info("requesting certificate", slog.String("domain", domainName))

	client, _, err := p.newClient(email)
	if err != nil {
		return nil, err
	}

	certs, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{domainName},
		Bundle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to obtain certificate for %s: %w", domainName, err)
	}

	dir := filepath.Join(p.tlsDir, domainName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cert directory: %w", err)
	}
	if err := os.WriteFile(p.CertPath(domainName), certs.Certificate, 0o644); err != nil {
		return nil, fmt.Errorf("failed to install certificate: %w", err)
	}
	if err := os.WriteFile(p.KeyPath(domainName), certs.PrivateKey, 0o600); err != nil {
		return nil, fmt.Errorf("failed to install private key: %w", err)
	}
	// Recorded so Renew can reuse the same account identity.
	if err := os.WriteFile(filepath.Join(dir, "account.email"), []byte(email), 0o600); err != nil {
		return nil, fmt.Errorf("failed to record account email: %w", err)
	}

	expiry, err := certExpiry(certs.Certificate)
	if err != nil {
		// Expiry is advisory; the certificate itself installed fine.
		p.logger.Warn("could not parse certificate expiry", slog.Any("error", err))
		expiry = time.Now().Add(90 * 24 * time.Hour)
	}

	return &domain.CertificateInfo{
		Domain:    domainName,
		Provider:  "letsencrypt",
		CertPath:  p.CertPath(domainName),
		KeyPath:   p.KeyPath(domainName),
		ExpiresAt: expiry,
	}, nil
}

// Revoke removes the installed material for a domain. Revocation is
// best-effort local cleanup: the upstream CA entry expires on its own, and
// an absent certificate is a success for the idempotent-delete contract.
func (p *AcmeProvider) Revoke(ctx context.Context, domainName string) error {
	err := os.RemoveAll(filepath.Join(p.tlsDir, domainName))
	if err != nil {
		return fmt.Errorf("failed to remove certificate material for %s: %w", domainName, err)
	}
	p.logger.Info("certificate material removed", slog.String("domain", domainName))
	return nil
}

// Renew re-runs issuance for a domain that already has material installed,
// reusing the account email recorded at issue time.
func (p *AcmeProvider) Renew(ctx context.Context, domainName string) error {
	email, err := os.ReadFile(filepath.Join(p.tlsDir, domainName, "account.email"))
	if err != nil {
		return fmt.Errorf("no issued certificate on record for %s: %w", domainName, err)
	}
	_, err = p.Issue(ctx, domainName, string(email))
	return err
}

// certExpiry parses the leaf certificate's NotAfter from a PEM bundle.
func certExpiry(pemBundle []byte) (time.Time, error) {
	block, _ := pem.Decode(pemBundle)
	if block == nil {
		return time.Time{}, errors.New("no PEM block in certificate bundle")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return time.Time{}, err
	}
	return cert.NotAfter, nil
}
