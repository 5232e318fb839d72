// Package transport binds the plain and TLS listeners that serve the same
// handler.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var ErrAlreadyRunning = errors.New("listeners already running")

type server struct {
	name string
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// Listeners is the plain + TLS pair. It can be started again after Close;
// a restart binds the same addresses that the first start resolved.
type Listeners struct {
	PlainAddr string
	TLSAddr   string
	Handler   http.Handler
	// TLSConfig should resolve certificates through GetCertificate so that
	// new material is picked up without rebinding.
	TLSConfig *tls.Config

	mu      sync.Mutex
	servers []*server
}

func New(plainAddr, tlsAddr string, h http.Handler, cfg *tls.Config) *Listeners {
	return &Listeners{PlainAddr: plainAddr, TLSAddr: tlsAddr, Handler: h, TLSConfig: cfg}
}

func newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Start binds both sockets and serves them in the background. It returns
// once both are bound or as soon as one fails, leaving nothing open.
func (l *Listeners) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.servers) > 0 {
		return ErrAlreadyRunning
	}

	plainLn, err := net.Listen("tcp", l.PlainAddr)
	if err != nil {
		return fmt.Errorf("listen plain %s: %w", l.PlainAddr, err)
	}
	rawTLS, err := net.Listen("tcp", l.TLSAddr)
	if err != nil {
		_ = plainLn.Close()
		return fmt.Errorf("listen tls %s: %w", l.TLSAddr, err)
	}
	l.PlainAddr = plainLn.Addr().String()
	l.TLSAddr = rawTLS.Addr().String()

	plain := &server{name: "http", srv: newHTTPServer(l.Handler), ln: plainLn, done: make(chan struct{})}
	secure := &server{name: "https", srv: newHTTPServer(l.Handler), done: make(chan struct{})}
	secure.srv.TLSConfig = l.TLSConfig
	secure.ln = tls.NewListener(rawTLS, l.TLSConfig)

	l.servers = []*server{plain, secure}
	for _, s := range l.servers {
		go serve(s)
	}
	log.Info().Str("module", "transport").Str("http", l.PlainAddr).Str("https", l.TLSAddr).Msg("listeners bound")
	return nil
}

func serve(s *server) {
	defer close(s.done)
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Str("module", "transport").Str("listener", s.name).Msg("serve error")
	}
}

// Close stops accepting on both listeners and waits for each to finish
// independently. When ctx expires the remaining connections are closed hard.
func (l *Listeners) Close(ctx context.Context) error {
	l.mu.Lock()
	servers := l.servers
	l.servers = nil
	l.mu.Unlock()

	var g errgroup.Group
	for _, s := range servers {
		g.Go(func() error {
			err := s.srv.Shutdown(ctx)
			if err != nil {
				_ = s.srv.Close()
			}
			<-s.done
			if err != nil {
				return fmt.Errorf("close %s: %w", s.name, err)
			}
			log.Info().Str("module", "transport").Str("listener", s.name).Msg("listener closed")
			return nil
		})
	}
	return g.Wait()
}

// Addrs reports the bound addresses.
func (l *Listeners) Addrs() (plain, secure string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.PlainAddr, l.TLSAddr
}

func (l *Listeners) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.servers) > 0
}
