// Lremty, August 2026
// License AGPL3

package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/stuffbin"
	flag "github.com/spf13/pflag"

	"github.com/lremty/lremty/internal/cache"
	"github.com/lremty/lremty/internal/hub"
	"github.com/lremty/lremty/store"
	"github.com/lremty/lremty/store/fs"
	"github.com/lremty/lremty/store/mem"
	"github.com/lremty/lremty/store/redis"
)

var (
	logger = log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
	ko     = koanf.New(".")

	// Version of the build injected at build time.
	buildString = "unknown"
)

// App is the global app context that's passed around.
type App struct {
	hub    *hub.Hub
	cfg    *hub.Config
	cache  *cache.Manager
	tpl    *template.Template
	fs     stuffbin.FileSystem
	logger *log.Logger
}

func loadConfig() {
	// Register --help handler.
	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}
	f.StringSlice("config", []string{"config.toml"},
		"Path to one or more TOML config files to load in order")
	f.Bool("version", false, "Show build version")
	f.Parse(os.Args[1:])

	// Display version.
	if ok, _ := f.GetBool("version"); ok {
		fmt.Println(buildString)
		os.Exit(0)
	}

	// Read the config files.
	cFiles, _ := f.GetStringSlice("config")
	for _, f := range cFiles {
		log.Printf("reading config: %s", f)
		if err := ko.Load(file.Provider(f), toml.Parser()); err != nil {
			log.Printf("error reading config: %v", err)
		}
	}

	// Merge env flags into config.
	if err := ko.Load(env.Provider("LREMTY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "LREMTY_")), "__", ".", -1)
	}), nil); err != nil {
		log.Printf("error loading env config: %v", err)
	}

	// Merge command line flags into config.
	ko.Load(posflag.Provider(f, ".", ko), nil)
}

// initFS initializes the stuffbin embedded static filesystem.
func initFS() stuffbin.FileSystem {
	// Get self executable path to initialise stuffed FS.
	exe, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}

	// Read stuffed data from self.
	fs, err := stuffbin.UnStuff(exe)
	if err != nil {
		// Binary is unstuffed or is running in dev mode.
		// Can halt here or fall back to the local filesystem.
		if err == stuffbin.ErrNoID {
			fs, err = stuffbin.NewLocalFS("./", "./theme")
			if err != nil {
				log.Fatalf("error falling back to local filesystem: %v", err)
			}
		} else {
			log.Fatalf("error reading stuffed binary: %v", err)
		}
	}
	return fs
}

// initStore initializes the configured store backend.
func initStore() store.Store {
	switch backend := ko.String("store.backend"); backend {
	case "redis":
		var cfg redis.Config
		if err := ko.Unmarshal("store.redis", &cfg); err != nil {
			logger.Fatalf("error unmarshalling 'store.redis' config: %v", err)
		}
		s, err := redis.New(cfg)
		if err != nil {
			logger.Fatalf("error initializing redis store: %v", err)
		}
		return s
	case "fs":
		var cfg fs.Config
		if err := ko.Unmarshal("store.fs", &cfg); err != nil {
			logger.Fatalf("error unmarshalling 'store.fs' config: %v", err)
		}
		s, err := fs.New(cfg, logger)
		if err != nil {
			logger.Fatalf("error initializing fs store: %v", err)
		}
		return s
	default:
		s, err := mem.New(mem.Config{})
		if err != nil {
			logger.Fatalf("error initializing mem store: %v", err)
		}
		return s
	}
}

// initCache installs and activates the configured asset cache generation.
// A failed install is logged and skipped; every asset fetch then falls
// through to its origin.
func initCache(app *App) {
	var cfg cache.Config
	if err := ko.Unmarshal("cache", &cfg); err != nil {
		logger.Fatalf("error unmarshalling 'cache' config: %v", err)
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 10 * time.Second
	}

	app.cache = cache.New(&assetFetcher{
		fs:   app.fs,
		http: &cache.HTTPFetcher{Client: &http.Client{Timeout: cfg.FetchTimeout}},
	}, logger)

	if cfg.Version == "" || len(cfg.Resources) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(),
		cfg.FetchTimeout*time.Duration(len(cfg.Resources)))
	defer cancel()
	if err := app.cache.Install(ctx, cfg.Version, cfg.Resources); err != nil {
		logger.Printf("error installing asset cache: %v", err)
		return
	}
	app.cache.Activate(cfg.Version)
}

// Catch OS interrupts and respond accordingly.
// This is not fool proof as http keeps listening while
// existing rooms are shut down.
func catchInterrupts() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range c {
			// Shutdown.
			logger.Printf("shutting down: %v", sig)
			os.Exit(0)
		}
	}()
}

func main() {
	// Load configuration from files.
	loadConfig()

	// Initialize global app context.
	app := &App{
		logger: logger,
		fs:     initFS(),
	}
	if err := ko.Unmarshal("app", &app.cfg); err != nil {
		logger.Fatalf("error unmarshalling 'app' config: %v", err)
	}

	minTime := time.Duration(3) * time.Second
	if app.cfg.RoomAge < minTime || app.cfg.WSTimeout < minTime {
		logger.Fatal("app.websocket_timeout and app.room_age should be > 3s")
	}

	// Initialize the store and the hub.
	app.hub = hub.NewHub(app.cfg, initStore(), logger)

	// Install the asset cache.
	initCache(app)

	// Compile static templates.
	tpl, err := stuffbin.ParseTemplatesGlob(nil, app.fs, "/theme/templates/*.html")
	if err != nil {
		logger.Fatalf("error compiling templates: %v", err)
	}
	app.tpl = tpl

	catchInterrupts()

	// Register HTTP routes.
	r := chi.NewRouter()
	r.Get("/", wrap(handleIndex, app, 0))
	r.Get("/ws/{roomID}", wrap(handleWS, app, hasRoom))

	// API.
	r.Post("/api/rooms", wrap(handleCreateRoom, app, 0))
	r.Post("/api/rooms/join", wrap(handleJoinRoom, app, 0))

	// Views.
	r.Get("/r/{roomID}", wrap(handleRoomPage, app, hasRoom))

	// Static assets, served through the offline cache.
	r.Get("/theme/*", wrap(handleAssets, app, 0))

	// Start the app.
	srv := &http.Server{
		Addr:    ko.String("app.address"),
		Handler: r,
	}

	if ko.Bool("app.tor") {
		pk, err := getOrCreatePK(app.hub.Store)
		if err != nil {
			logger.Fatalf("error preparing onion key: %v", err)
		}
		ln, err := net.Listen("tcp", ko.String("app.address"))
		if err != nil {
			logger.Fatalf("couldn't listen on %v: %v", ko.String("app.address"), err)
		}
		ts := &torServer{Handler: r, PrivateKey: pk}
		logger.Printf("starting onion service at http://%v.onion", onionAddr(pk))
		if err := ts.Serve(ln); err != nil {
			logger.Fatalf("couldn't start onion service: %v", err)
		}
		return
	}

	logger.Printf("starting server on %v", ko.String("app.address"))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatalf("couldn't start server: %v", err)
	}
}
