// Inboxcore daemon serves mailbox synchronization over Model Context Protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"github.com/inboxcore/inboxcore/internal/auth"
	"github.com/inboxcore/inboxcore/internal/autoreply"
	"github.com/inboxcore/inboxcore/internal/cache"
	"github.com/inboxcore/inboxcore/internal/config"
	"github.com/inboxcore/inboxcore/internal/engine"
	"github.com/inboxcore/inboxcore/internal/page"
	"github.com/inboxcore/inboxcore/internal/profile"
	"github.com/inboxcore/inboxcore/internal/provider"
	"github.com/inboxcore/inboxcore/internal/thread"
	"github.com/inboxcore/inboxcore/internal/tool"
)

func main() {
	httpAddr := flag.String("http-addr", "localhost:0", "HTTP SERVER listen addr")
	configFile := flag.String("config-file", "", "Path to YAML config, empty for defaults")
	cacheDB := flag.String("cache-db", "./data/inboxcore-cache.db", "Path to the persistent cache database, empty for memory-only")
	oauthTokenFile := flag.String("oauth-token-file", "./data/inboxcore-token.json", "Path to cache google oauth token, empty to avoid storing")
	oauthURLParam := flag.String("oauth-url", "", "OAuth URL")
	envFileParam := flag.String("env-file", "", "Path to env file")
	enableStdio := flag.Bool("stdio", false, "Enable stdio transport for MCP (disables stdout logging)")
	logFile := flag.String("log-file", "", "Path to log file (only used with stdio transport, otherwise logs to stdout)")

	flag.Parse()

	persistLogs, logger := setupLogger(enableStdio, logFile)
	defer persistLogs()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Errorf("config.Load failed: %w", err))
	}

	ln := mustListen(httpAddr)
	oauthCfg := mustCreateOauthCfg(ln.Addr().String(), envFileParam, oauthURLParam)

	if oauthTokenFile == nil {
		panic("-oauth-token-file must be provided")
	}
	tok, err := auth.NewToken(oauthCfg, *oauthTokenFile)
	if err != nil {
		panic(fmt.Errorf("auth.NewToken failed: %w", err))
	}

	defer func() {
		log.Println("Persisting token if exists")
		if err := tok.Persist(); err != nil {
			log.Println(fmt.Errorf("tok.Persist failed: %w", err))
		}
	}()

	authHTTP := auth.NewHTTPHandler(tok)

	mux := http.NewServeMux()
	mux.Handle("/oauth", authHTTP)

	eng, profiles := buildEngine(cfg, oauthCfg, tok, *cacheDB, logger)

	server := tool.NewServer(eng, profiles, eng)
	mcpHTTP := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server { return server }, nil)

	mux.Handle("/mcp", mcpHTTP)

	srv := &http.Server{
		Handler: mux,
	}

	shutdown := make(chan os.Signal, 1)

	signal.Notify(shutdown, syscall.SIGTERM, syscall.SIGINT)

	if _, err := tok.OAuthToken(); errors.Is(err, auth.ErrTokenNotSet) {
		openBrowser(oauthCfg.RedirectURL)
	}

	stopHTTP, errHTTPCh := serveHTTP(srv, ln)
	defer stopHTTP()

	var errStdioCh <-chan error
	if *enableStdio {
		var stopStdio func()
		stopStdio, errStdioCh = serveStdio(server)
		defer stopStdio()
	}

	select {
	case err := <-errHTTPCh:
		log.Println("Error http server", err)
	case err := <-errStdioCh:
		log.Println("Error stdio", err)
	case <-shutdown:
		log.Println("Shutdown signal received")
	}
}

func buildEngine(cfg *config.Config, oauthCfg *oauth2.Config, tok *auth.Token, cacheDB string, logger *slog.Logger) (*engine.Engine, *profile.Store) {
	var persistent cache.Tier
	if cacheDB != "" {
		sqlTier, err := cache.NewSQLite(cacheDB, cfg.CacheTTL)
		if err != nil {
			// Memory-only degradation; the engine works without the
			// persistent tier.
			logger.Warn("persistent cache unavailable", "path", cacheDB, "error", err)
		} else {
			persistent = sqlTier
		}
	}
	composite := cache.NewComposite(cache.NewMemory(), persistent, cfg.CacheTTL, logger)

	knownProfiles := make([]profile.Profile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		knownProfiles = append(knownProfiles, profile.Profile{
			ID:          p.ID,
			Name:        p.Name,
			Email:       p.Email,
			OutOfOffice: p.OutOfOffice,
		})
	}
	profiles := profile.NewStore(cfg.ActiveProfile, knownProfiles...)

	remote := provider.NewGmail(oauthCfg, tok)
	guard := autoreply.NewGuard(remote, profiles, cfg.InternalAddresses, cfg.AutomatedSenderPatterns, logger)
	pipeline := thread.NewPipeline(thread.Options{
		HeaderKeywords:          cfg.QuoteHeaderKeywords,
		DOMSizeLimit:            cfg.QuoteDOMSizeLimit,
		AttachmentMinSize:       cfg.AttachmentMinSize,
		AttachmentNoisePatterns: cfg.AttachmentNoisePatterns,
	}, logger)

	eng := engine.New(remote, composite, page.NewTracker(), guard, pipeline, profiles, cfg, logger)
	profiles.OnSwitch(eng.SwitchProfile)
	profiles.OnOutOfOfficeChange(eng.ResetAutoReply)

	return eng, profiles
}

func serveStdio(srv *mcp.Server) (func(), <-chan error) {
	errStdioCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(errStdioCh)
		log.Println("Starting stdio transport")

		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			err = fmt.Errorf("srv.Run failed: %w", err)
			errStdioCh <- err
		}
	}()

	return func() {
		cancel()

		<-errStdioCh
		log.Println("Stdio transport stopped")
	}, errStdioCh
}

func serveHTTP(srv *http.Server, ln net.Listener) (func(), <-chan error) {
	errHTTPCh := make(chan error, 1)
	go func() {
		defer close(errHTTPCh)

		log.Println("Starting http server on", ln.Addr().String())

		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			err = fmt.Errorf("srv.ListenAndServe failed: %w", err)
			log.Println(err)
			errHTTPCh <- err
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Println(fmt.Errorf("srv.Shutdown failed: %w", err))
		}

		<-errHTTPCh
		log.Println("HTTP server stopped")
	}, errHTTPCh
}

func mustListen(httpAddr *string) net.Listener {
	if httpAddr == nil {
		panic("-http-addr must be provided")
	}

	ln, err := net.Listen("tcp", *httpAddr)
	if err != nil {
		panic(fmt.Errorf("net.Listen failed: %w", err))
	}

	return ln
}

func mustCreateOauthCfg(lnAddr string, envFileParam, oauthURLParam *string) *oauth2.Config {
	if envFileParam != nil && *envFileParam != "" {
		if err := godotenv.Load(*envFileParam); err != nil {
			panic(fmt.Errorf("godotenv.Load failed: %w", err))
		}
	}

	oauthClientID := os.Getenv("OAUTH_GOOGLE_CLIENT_ID")
	oauthClientSec := os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET")

	if oauthClientID == "" || oauthClientSec == "" {
		panic("Env variables OAUTH_GOOGLE_CLIENT_ID and OAUTH_GOOGLE_CLIENT_SECRET must be set")
	}

	oauthURL := fmt.Sprintf("http://%s/oauth", lnAddr)
	if oauthURLParam != nil && *oauthURLParam != "" {
		oauthURL = *oauthURLParam
	}

	return &oauth2.Config{
		ClientID:     oauthClientID,
		ClientSecret: oauthClientSec,
		RedirectURL:  oauthURL,
		Scopes: []string{
			gmail.GmailModifyScope,
			gmail.GmailSendScope,
			gmail.GmailLabelsScope,
		},
		Endpoint: google.Endpoint,
	}
}

func setupLogger(enableStdio *bool, logFile *string) (func(), *slog.Logger) {
	var out io.Writer = os.Stdout

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			panic(fmt.Errorf("failed to open log file: %w", err))
		}
		log.SetOutput(f)

		return func() {
			if err := f.Close(); err != nil {
				log.Println(fmt.Errorf("f.Close failed: %w", err))
			}
		}, slog.New(slog.NewTextHandler(f, nil))
	}

	if *enableStdio {
		out = io.Discard
	}
	log.SetOutput(out)

	return func() {}, slog.New(slog.NewTextHandler(out, nil))
}

func openBrowser(url string) {
	url = fmt.Sprintf("%s?redirect=1", url)
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		log.Printf("Could not open browser automatically: %v; please copy and open link in the browser: %s\n", err, url)
	}
}
