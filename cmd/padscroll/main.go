package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "padscroll v%s\n", version)
	fmt.Fprintln(w, "Gamepad D-pad to viewport scrolling daemon")
}

// cliOptions is the parsed command line.
type cliOptions struct {
	ConfigPath  string
	PrintConfig bool
	Open        bool
	Version     bool
	Help        bool

	Overrides FlagOverrides
}

func newFlagSet(opts *cliOptions) (*pflag.FlagSet, func()) {
	fs := pflag.NewFlagSet("padscroll", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVarP(&opts.ConfigPath, "config", "c", "", "Path to config file (.yaml or .toml)")
	fs.BoolVar(&opts.PrintConfig, "print-config", false, "Print the effective config as YAML and exit")
	fs.BoolVar(&opts.Open, "open", false, "Open the demo page in a browser once the HTTP server is up")

	def := DefaultConfig()
	backend := fs.String("backend", def.Input.Backend, "Input backend: evdev|sdl")
	device := fs.String("device", def.Input.Device, "Use only this evdev node (default: every gamepad in --input-dir)")
	inputDir := fs.String("input-dir", def.Input.Dir, "Directory scanned for evdev nodes")
	tickHz := fs.Int("tick-hz", def.Input.TickHz, "Sampling rate in Hz")
	vpWidth := fs.Float64("viewport-width", def.Viewport.Width, "Viewport width used until a browser reports one")
	vpHeight := fs.Float64("viewport-height", def.Viewport.Height, "Viewport height used until a browser reports one")
	httpEnabled := fs.Bool("http", def.HTTP.Enabled, "Serve the browser client and scroll websocket")
	httpListen := fs.String("listen", def.HTTP.Listen, "HTTP listen address")
	uinputEnabled := fs.Bool("uinput", def.Uinput.Enabled, "Scroll through a virtual wheel device")
	uinputPath := fs.String("uinput-path", def.Uinput.Path, "uinput device node")
	ppd := fs.Float64("pixels-per-detent", def.Uinput.PixelsPerDetent, "Pixels that map to one wheel detent")
	ipcSocket := fs.String("ipc-socket", def.IPC.SocketPath, "Unix domain socket path for IPC")
	logLevel := fs.String("log-level", def.Logging.Level, "Log level: error, warn, info, debug")
	logFormat := fs.String("log-format", def.Logging.Format, "Log format: text|json")

	fs.BoolVarP(&opts.Version, "version", "v", false, "Print version and exit")
	fs.BoolVarP(&opts.Help, "help", "h", false, "Print this help message")

	// collect fills Overrides with the flags the user actually set, so a
	// flag's default never masks a value from the config file.
	collect := func() {
		o := &opts.Overrides
		if fs.Changed("backend") {
			o.InputBackend = backend
		}
		if fs.Changed("device") {
			o.InputDevice = device
		}
		if fs.Changed("input-dir") {
			o.InputDir = inputDir
		}
		if fs.Changed("tick-hz") {
			o.TickHz = tickHz
		}
		if fs.Changed("viewport-width") {
			o.ViewportWidth = vpWidth
		}
		if fs.Changed("viewport-height") {
			o.ViewportHeight = vpHeight
		}
		if fs.Changed("http") {
			o.HTTPEnabled = httpEnabled
		}
		if fs.Changed("listen") {
			o.HTTPListen = httpListen
		}
		if fs.Changed("uinput") {
			o.UinputEnabled = uinputEnabled
		}
		if fs.Changed("uinput-path") {
			o.UinputPath = uinputPath
		}
		if fs.Changed("pixels-per-detent") {
			o.UinputPixelsPerDetent = ppd
		}
		if fs.Changed("ipc-socket") {
			o.IPCSocketPath = ipcSocket
		}
		if fs.Changed("log-level") {
			o.LogLevel = logLevel
		}
		if fs.Changed("log-format") {
			o.LogFormat = logFormat
		}
	}
	return fs, collect
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	printVersion(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  padscroll [OPTIONS]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DESCRIPTION:")
	fmt.Fprintln(w, "  Turns D-pad presses on a gamepad into viewport scrolls. A tap scrolls")
	fmt.Fprintln(w, "  once; holding a direction repeats after a short delay. Scrolls go to")
	fmt.Fprintln(w, "  browser pages that include /padscroll.js and/or a virtual wheel device.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  # Scroll browser tabs with the first gamepad found")
	fmt.Fprintln(w, "  padscroll --open")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # Scroll every application through a virtual wheel")
	fmt.Fprintln(w, "  padscroll --uinput --http=false")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NOTES:")
	fmt.Fprintln(w, "  - Requires read access to /dev/input (run as root or add user to 'input' group)")
	fmt.Fprintln(w, "  - --uinput requires write access to /dev/uinput")
}

// parseCLI parses args (without the program name).
func parseCLI(args []string, stderr io.Writer) (cliOptions, *pflag.FlagSet, error) {
	var opts cliOptions
	fs, collect := newFlagSet(&opts)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	if fs.NArg() > 0 {
		return opts, fs, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	collect()
	return opts, fs, nil
}

// loadConfig applies defaults, the config file and flag overrides, then validates.
func loadConfig(opts cliOptions) (Config, error) {
	cfg := DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = LoadConfigFile(opts.ConfigPath); err != nil {
			return Config{}, err
		}
	}
	opts.Overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	opts, fs, err := parseCLI(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	if opts.Help {
		printUsage(os.Stdout, fs)
		return
	}
	if opts.Version {
		printVersion(os.Stdout)
		return
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if opts.PrintConfig {
		out, err := cfg.EncodeYAML()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts.Open, logger); err != nil {
		logger.Error("padscroll stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

// run starts every component and blocks until ctx is done or one of them fails.
// Anything that can fail at startup (socket binds, device creation) is done
// before the first goroutine starts.
func run(ctx context.Context, cfg Config, openBrowser bool, logger *slog.Logger) error {
	// Central event bus into the daemon.
	events := make(chan Event, 64)

	source, err := newDeviceSource(cfg.Input, logger)
	if err != nil {
		return fmt.Errorf("input backend: %w", err)
	}
	defer source.Close()

	socketPath := ExpandPath(cfg.IPC.SocketPath)
	ipcListener, err := listenIPC(socketPath)
	if err != nil {
		return fmt.Errorf("IPC: %w", err)
	}

	var (
		dispatchers multiDispatcher
		notifiers   multiNotifier
		wsServer    *Server
		httpMux     http.Handler
		httpLn      net.Listener
		wheel       *uinputWheel
	)

	if cfg.HTTP.Enabled {
		wsServer = NewServer(logger, events, ServerConfig{})
		if httpMux, err = newHTTPMux(wsServer, logger); err != nil {
			_ = ipcListener.Close()
			return err
		}
		httpLn, err = net.Listen("tcp", cfg.HTTP.Listen)
		if err != nil {
			_ = ipcListener.Close()
			return fmt.Errorf("http listen on %s: %w", cfg.HTTP.Listen, err)
		}
		dispatchers = append(dispatchers, wsServer.Hub())
		notifiers = append(notifiers, wsServer.Hub())
	}

	if cfg.Uinput.Enabled {
		wheel, err = newUinputWheel(cfg.Uinput, logger)
		if err != nil {
			_ = ipcListener.Close()
			if httpLn != nil {
				_ = httpLn.Close()
			}
			return fmt.Errorf("uinput: %w", err)
		}
		defer wheel.Close()
		dispatchers = append(dispatchers, wheel)
	}

	targets := effectTargets{Dispatcher: dispatchers, Notifier: notifiers}
	state := NewDaemonState(cfg.Viewport.Width, cfg.Viewport.Height)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(gctx, events, source, targets, state, cfg.Input.TickHz, logger)
		return nil
	})
	g.Go(func() error {
		return serveIPC(gctx, ipcListener, socketPath, events, logger)
	})
	g.Go(func() error {
		if err := source.Run(gctx, events); err != nil {
			return fmt.Errorf("input backend: %w", err)
		}
		return nil
	})

	if wsServer != nil {
		g.Go(func() error {
			wsServer.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, httpLn, httpMux, logger)
		})
		if openBrowser {
			openDemoPage(httpLn.Addr(), logger)
		}
	} else if openBrowser {
		logger.Warn("--open ignored: http is disabled")
	}

	if wheel != nil {
		g.Go(func() error { return wheel.Run(gctx) })
	}

	logger.Info("padscroll started",
		"version", version,
		"backend", cfg.Input.Backend,
		"tick_hz", cfg.Input.TickHz,
		"http", cfg.HTTP.Enabled,
		"uinput", cfg.Uinput.Enabled,
		"ipc", cfg.IPC.SocketPath)

	return g.Wait()
}

// openDemoPage opens the demo page served on addr in the default browser.
func openDemoPage(addr net.Addr, logger *slog.Logger) {
	host := "127.0.0.1"
	port := ""
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprint(tcp.Port)
		if ip := tcp.IP; ip != nil && !ip.IsUnspecified() {
			host = ip.String()
		}
	}
	url := "http://" + net.JoinHostPort(host, port) + "/"

	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if err := browser.OpenURL(url); err != nil {
		logger.Warn("could not open browser", "url", url, "error", err)
		return
	}
	logger.Info("opened demo page", "url", url)
}
