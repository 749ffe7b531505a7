// Command deskpad exports canvas documents, renders proxies and serves the
// editing API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/gogpu/deskpad"
	"github.com/gogpu/deskpad/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "export":
		err = cmdExport(os.Args[2:])
	case "proxy":
		err = cmdProxy(os.Args[2:])
	case "serve":
		err = cmdServe(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "deskpad %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `deskpad - proxy editing and full resolution export

usage:
  deskpad export -doc design.json [-images dir] [-out dir] [-config file]
  deskpad proxy  -in photo.jpg [-out proxy.jpg] [-config file]
  deskpad serve  [-addr :8080] [-images dir] [-config file]

export  Composites a saved document at export resolution.
proxy   Writes the proxy an upload of the image would get.
serve   Runs the HTTP API for one editing session.
`)
}

// loadConfig reads path, or returns the defaults when path is empty, and
// installs the configured logger.
func loadConfig(path string) (*deskpad.Config, error) {
	cfg := deskpad.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = deskpad.LoadConfigFile(path); err != nil {
			return nil, err
		}
	}
	setupLogger(cfg.Log)
	return cfg, nil
}

func setupLogger(c deskpad.LogConfig) {
	var lvl slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if c.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	deskpad.SetLogger(logger)
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	docPath := fs.String("doc", "", "document JSON file")
	images := fs.String("images", "", "directory image references are relative to (default: the document's)")
	out := fs.String("out", ".", "output directory")
	configPath := fs.String("config", "", "YAML config file")
	fs.Parse(args)

	if *docPath == "" {
		return errors.New("-doc is required")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	f, err := os.Open(*docPath)
	if err != nil {
		return err
	}
	doc, err := deskpad.ReadDocument(f)
	f.Close()
	if err != nil {
		return err
	}

	dir := *images
	if dir == "" {
		dir = filepath.Dir(*docPath)
	}
	reg := deskpad.NewRegistry(cfg.RegistryOptions()...)
	canvas, err := doc.Canvas(deskpad.DirLoader(dir), reg)
	if err != nil {
		slog.Warn("document partially loaded", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	res, err := deskpad.NewPlanner(reg, cfg.PlannerOptions()...).Export(ctx, canvas)
	if err != nil {
		return err
	}
	path, err := res.Artifact.Save(*out)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "exported %s (%dx%d, %s, %d objects, %d dropped)\n",
		path, res.Artifact.Width, res.Artifact.Height,
		humanize.Bytes(uint64(len(res.Artifact.Data))), res.Objects, len(res.Dropped))
	for _, d := range res.Dropped {
		fmt.Fprintf(os.Stderr, "  dropped: %v\n", d)
	}
	return nil
}

func cmdProxy(args []string) error {
	fs := flag.NewFlagSet("proxy", flag.ExitOnError)
	in := fs.String("in", "", "image file")
	out := fs.String("out", "", "proxy output file (default: <in>.proxy.jpg)")
	configPath := fs.String("config", "", "YAML config file")
	fs.Parse(args)

	if *in == "" {
		return errors.New("-in is required")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		return err
	}

	reg := deskpad.NewRegistry(cfg.RegistryOptions()...)
	proxy, err := reg.CreateProxy(context.Background(), data)
	if err != nil {
		return err
	}
	dst := *out
	if dst == "" {
		dst = *in + ".proxy.jpg"
	}
	if err := os.WriteFile(dst, proxy.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s: %dx%d -> %dx%d (%s -> %s)\n", dst,
		proxy.OriginalWidth, proxy.OriginalHeight, proxy.Width, proxy.Height,
		humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(len(proxy.Data))))
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (overrides config)")
	images := fs.String("images", "", "directory document image references are relative to")
	configPath := fs.String("config", "", "YAML config file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	reg := deskpad.NewRegistry(cfg.RegistryOptions()...)
	sess := deskpad.NewSession(reg, cfg.Server.CanvasWidth, cfg.Server.CanvasHeight, cfg.PlannerOptions()...)
	srv := server.New(sess, cfg.Server, server.WithImageLoader(deskpad.DirLoader(*images)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return srv.ListenAndServe(ctx)
}
