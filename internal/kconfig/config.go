// Package kconfig loads the TOML configuration file that describes which
// addresses kutsche listens on, its TLS material, and where received mail
// is routed, generalized to support multiple listeners and per-recipient
// destinations.
package kconfig

import (
	"crypto/tls"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/plustik/kutsche/internal/dest"
	"github.com/plustik/kutsche/internal/smtp"
)

// Listener describes one address kutsche binds to.
type Listener struct {
	Addr     string
	Implicit bool // true iff TLS is configured and port == 465 (implicit TLS from the first byte)
	StartTLS bool // true iff TLS is configured and the port isn't 465
}

// Config is the fully resolved, ready-to-run configuration: listener set,
// shared TLS material, and the per-recipient destination map. Built once
// at startup and handed down by reference; never mutated afterwards.
type Config struct {
	LocalAddrs []Listener
	TLSConfig  *tls.Config // non-nil iff any listener is implicit or opts into STARTTLS
	DestMap    map[string]dest.Destination

	EffectiveUser  string // privilege drop, consumed by cmd/kutsche only
	EffectiveGroup string
}

// fileConfig mirrors the on-disk TOML shape.
type fileConfig struct {
	BindAddresses  []string             `toml:"bind_addresses"`
	EffectiveUser  string               `toml:"effective_user"`
	EffectiveGroup string               `toml:"effective_group"`
	TLS            []tlsCertEntry       `toml:"tls_cert"`
	Dest           map[string]destEntry `toml:"dest"`
}

type tlsCertEntry struct {
	Hostname string `toml:"hostname"` // SNI match; "" means the default certificate
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

type destEntry struct {
	Path    string `toml:"path"`    // FileDestination base directory
	Maildir string `toml:"maildir"` // MaildirDestination base directory
}

// Load parses path and resolves it into a ready-to-use Config. Any
// structural problem (malformed TOML, missing cert files, an invalid or
// incomplete destination entry) is reported as a *smtp.Error tagged
// smtp.KindConfig. Listener addresses are not resolved here; a bad one
// only shows up when the gateway tries to bind it.
func Load(path string) (*Config, error) {
	var raw fileConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, smtp.Wrap(smtp.KindConfig, err)
	}

	addrs := raw.BindAddresses
	if len(addrs) == 0 {
		addrs = []string{"0.0.0.0:25"}
	}

	certMap, defaultCert, err := loadCertificates(raw.TLS)
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if len(certMap) > 0 || defaultCert != nil {
		tlsConfig = &tls.Config{
			GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
				if cert, ok := certMap[hello.ServerName]; ok {
					return cert, nil
				}
				if defaultCert != nil {
					return defaultCert, nil
				}
				return nil, fmt.Errorf("no certificate configured for %q", hello.ServerName)
			},
		}
	}

	listeners := make([]Listener, 0, len(addrs))
	for _, addr := range addrs {
		listeners = append(listeners, Listener{
			Addr:     addr,
			Implicit: tlsConfig != nil && isImplicitTLSAddr(addr),
			StartTLS: tlsConfig != nil && !isImplicitTLSAddr(addr),
		})
	}

	destMap, err := loadDestinations(raw.Dest)
	if err != nil {
		return nil, err
	}

	return &Config{
		LocalAddrs:     listeners,
		TLSConfig:      tlsConfig,
		DestMap:        destMap,
		EffectiveUser:  raw.EffectiveUser,
		EffectiveGroup: raw.EffectiveGroup,
	}, nil
}

func loadCertificates(entries []tlsCertEntry) (map[string]*tls.Certificate, *tls.Certificate, error) {
	certMap := map[string]*tls.Certificate{}
	var defaultCert *tls.Certificate

	for _, e := range entries {
		cert, err := tls.LoadX509KeyPair(e.CertFile, e.KeyFile)
		if err != nil {
			return nil, nil, smtp.Wrap(smtp.KindConfig, err)
		}
		if e.Hostname == "" {
			c := cert
			defaultCert = &c
			continue
		}
		c := cert
		certMap[e.Hostname] = &c
	}

	if defaultCert == nil && len(certMap) == 1 {
		for _, c := range certMap {
			defaultCert = c
		}
	}

	return certMap, defaultCert, nil
}

func loadDestinations(entries map[string]destEntry) (map[string]dest.Destination, error) {
	destMap := make(map[string]dest.Destination, len(entries))
	log := logrus.WithField("component", "kconfig")

	for mailbox, e := range entries {
		if parsed, err := smtp.ParseMailbox("<" + mailbox + ">"); err != nil || parsed == "" {
			return nil, smtp.Wrap(smtp.KindConfig, fmt.Errorf("dest key %q is not a valid mailbox", mailbox))
		}

		switch {
		case e.Path != "":
			d, err := dest.NewFileDestination(e.Path, log.WithField("dest", mailbox))
			if err != nil {
				return nil, smtp.Wrap(smtp.KindConfig, err)
			}
			destMap[mailbox] = d
		case e.Maildir != "":
			d, err := dest.NewMaildirDestination(e.Maildir, log.WithField("dest", mailbox))
			if err != nil {
				return nil, smtp.Wrap(smtp.KindConfig, err)
			}
			destMap[mailbox] = d
		default:
			return nil, smtp.Wrap(smtp.KindConfig, fmt.Errorf("dest %q has neither path nor maildir set", mailbox))
		}
	}

	return destMap, nil
}

// isImplicitTLSAddr reports whether addr's port is 465, the registered
// "submissions"/SMTPS port where TLS is expected from the very first byte.
func isImplicitTLSAddr(addr string) bool {
	return hasPortSuffix(addr, ":465")
}

func hasPortSuffix(addr, suffix string) bool {
	if len(addr) < len(suffix) {
		return false
	}
	return addr[len(addr)-len(suffix):] == suffix
}
