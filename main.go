// prefeditor - inspect and edit Android SharedPreferences files on devices and on disk
//
//	prefeditor devices                         List connected devices
//	prefeditor apps -device D                  List third-party packages
//	prefeditor files -device D -package P      List preference files of an app
//	prefeditor show <target>                   Print the entries of a file
//	prefeditor set <target> key value...       Change an entry
//	prefeditor delete <target> key...          Delete entries
//	prefeditor add <target> -kind K key value  Add an entry
//	prefeditor apply <target> -edits JSON      Apply a batch of edits
//	prefeditor preview <target> -edits JSON    Show the diff a batch would produce
//	prefeditor history [-target T]             Show recorded edits
//	prefeditor watch -path FILE                Follow a local file
//	prefeditor mcp                             Serve the MCP protocol on stdio
//
// <target> is either -device D -package P -file F, or -path FILE.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"PrefEditor/mcp"
	"PrefEditor/pkg/config"
	"PrefEditor/pkg/types"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "devices":
		err = cmdDevices(args)
	case "pin":
		err = cmdPin(args)
	case "apps":
		err = cmdApps(args)
	case "files":
		err = cmdFiles(args)
	case "show":
		err = cmdShow(args)
	case "set":
		err = cmdSet(args)
	case "delete":
		err = cmdDelete(args)
	case "add":
		err = cmdAdd(args)
	case "apply":
		err = cmdApply(args, false)
	case "preview":
		err = cmdApply(args, true)
	case "history":
		err = cmdHistory(args)
	case "recent":
		err = cmdRecent(args)
	case "watch":
		err = cmdWatch(args)
	case "mcp":
		err = cmdMCP(args)
	case "logs":
		err = cmdLogs(args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`prefeditor - Android preference editor

USAGE:
    prefeditor <command> [options]

COMMANDS:
    devices                 List connected devices (pinned first)
    pin -device D           Pin or unpin a device
    apps -device D          List third-party packages of a device
    files -device D -package P
                            List SharedPreferences and DataStore files of an app
    show <target>           Print the entries of a preference file
    set <target> key value  Change an entry (-entries for string sets)
    delete <target> key...  Delete entries
    add <target> -kind K key value...
                            Add an entry (boolean, int, long, float, string, set)
    apply <target> -edits JSON
                            Apply a batch of edits, e.g. '[{"action":"set","key":"k","value":"1"}]'
    preview <target> -edits JSON
                            Show the diff a batch would produce without writing
    history [-target T] [-limit N]
                            Show recorded edits
    recent                  List recently opened preference files
    watch -path FILE        Print a local preference file whenever it changes
    mcp                     Run the MCP server on stdio
    logs [-n N]             Show recent log lines
    version                 Print the version

TARGETS:
    -device D -package P -file F   A file in the app's data directory on a device
    -path FILE                     A local file (.xml or .preferences_pb)

Every command accepts -config FILE (default: ` + config.ConfigPath() + `).`)
}

// command holds the flags shared by every subcommand
type command struct {
	fs         *flag.FlagSet
	configPath string
	ref        types.FileRef
}

func newCommand(name string) *command {
	c := &command{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.StringVar(&c.configPath, "config", "", "path to config file")
	return c
}

// targetFlags registers the flags addressing a preference file
func (c *command) targetFlags() {
	c.fs.StringVar(&c.ref.DeviceID, "device", "", "device serial")
	c.fs.StringVar(&c.ref.Package, "package", "", "application package")
	c.fs.StringVar(&c.ref.File, "file", "", "preference file name")
	c.fs.StringVar(&c.ref.Path, "path", "", "local preference file")
}

func (c *command) checkTarget() error {
	if c.ref.Path != "" {
		return nil
	}
	if c.ref.DeviceID == "" || c.ref.Package == "" || c.ref.File == "" {
		return fmt.Errorf("%s: either -path or -device, -package and -file are required", c.fs.Name())
	}
	return nil
}

// run loads the configuration, starts the app and calls fn with it
func (c *command) run(fn func(ctx context.Context, app *App) error) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := DefaultLogConfig()
	logCfg.Level = ParseLogLevel(cfg.Log.Level)
	if cfg.Log.File {
		logCfg = PersistentLogConfig(cfg.LogDir(), logCfg.Level)
	}
	if err := InitLogger(logCfg); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(cfg, version)
	if err := app.startup(ctx); err != nil {
		return err
	}
	defer app.Shutdown()

	return fn(ctx, app)
}

func cmdDevices(args []string) error {
	c := newCommand("devices")
	asJSON := c.fs.Bool("json", false, "print JSON")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	return c.run(func(ctx context.Context, app *App) error {
		devices, err := app.GetDevices(ctx)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(devices)
		}
		if len(devices) == 0 {
			fmt.Println("No devices connected")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERIAL\tSTATE\tMODEL\tPINNED")
		for _, d := range devices {
			pinned := ""
			if d.IsPinned {
				pinned = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Serial, d.Type, d.Model, pinned)
		}
		return w.Flush()
	})
}

func cmdPin(args []string) error {
	c := newCommand("pin")
	device := c.fs.String("device", "", "device serial")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if *device == "" {
		return fmt.Errorf("pin: -device is required")
	}
	return c.run(func(ctx context.Context, app *App) error {
		return app.TogglePinDevice(*device)
	})
}

func cmdApps(args []string) error {
	c := newCommand("apps")
	device := c.fs.String("device", "", "device serial")
	refresh := c.fs.Bool("refresh", false, "bypass the package cache")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if *device == "" {
		return fmt.Errorf("apps: -device is required")
	}
	return c.run(func(ctx context.Context, app *App) error {
		packages, err := app.ListPackages(ctx, *device, *refresh)
		if err != nil {
			return err
		}
		for _, p := range packages {
			fmt.Println(p)
		}
		return nil
	})
}

func cmdFiles(args []string) error {
	c := newCommand("files")
	device := c.fs.String("device", "", "device serial")
	pkg := c.fs.String("package", "", "application package")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if *device == "" || *pkg == "" {
		return fmt.Errorf("files: -device and -package are required")
	}
	return c.run(func(ctx context.Context, app *App) error {
		files, err := app.ListPrefFiles(ctx, *device, *pkg)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%s\t%s\n", f.Name, f.Type)
		}
		return nil
	})
}

func cmdShow(args []string) error {
	c := newCommand("show")
	c.targetFlags()
	asJSON := c.fs.Bool("json", false, "print JSON")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if err := c.checkTarget(); err != nil {
		return err
	}
	return c.run(func(ctx context.Context, app *App) error {
		snap, err := NewMCPBridge(app).ReadPreferences(ctx, c.ref)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(snap)
		}
		printSnapshot(snap)
		return nil
	})
}

func cmdSet(args []string) error {
	c := newCommand("set")
	c.targetFlags()
	entries := c.fs.Bool("entries", false, "treat the values as the entries of a string set")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if err := c.checkTarget(); err != nil {
		return err
	}
	if c.fs.NArg() < 2 && !(*entries && c.fs.NArg() == 1) {
		return fmt.Errorf("usage: prefeditor set <target> key value")
	}
	e := types.PrefEdit{Action: types.ActionSet, Key: c.fs.Arg(0)}
	if *entries {
		e.Entries = append([]string{}, c.fs.Args()[1:]...)
	} else {
		e.Value = strings.Join(c.fs.Args()[1:], " ")
	}
	return c.apply([]types.PrefEdit{e})
}

func cmdDelete(args []string) error {
	c := newCommand("delete")
	c.targetFlags()
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if err := c.checkTarget(); err != nil {
		return err
	}
	if c.fs.NArg() == 0 {
		return fmt.Errorf("usage: prefeditor delete <target> key...")
	}
	var edits []types.PrefEdit
	for _, key := range c.fs.Args() {
		edits = append(edits, types.PrefEdit{Action: types.ActionDelete, Key: key})
	}
	return c.apply(edits)
}

func cmdAdd(args []string) error {
	c := newCommand("add")
	c.targetFlags()
	kind := c.fs.String("kind", "string", "boolean, int, long, float, string or set")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if err := c.checkTarget(); err != nil {
		return err
	}
	if c.fs.NArg() < 1 || (*kind != "set" && c.fs.NArg() < 2) {
		return fmt.Errorf("usage: prefeditor add <target> -kind K key value")
	}
	e := types.PrefEdit{Action: types.ActionAdd, Key: c.fs.Arg(0), Kind: *kind}
	if *kind == "set" {
		e.Entries = append([]string{}, c.fs.Args()[1:]...)
	} else {
		e.Value = strings.Join(c.fs.Args()[1:], " ")
	}
	return c.apply([]types.PrefEdit{e})
}

func cmdApply(args []string, dryRun bool) error {
	name := "apply"
	if dryRun {
		name = "preview"
	}
	c := newCommand(name)
	c.targetFlags()
	raw := c.fs.String("edits", "", "JSON array of edits, or @file")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if err := c.checkTarget(); err != nil {
		return err
	}
	edits, err := readEdits(*raw)
	if err != nil {
		return err
	}
	if !dryRun {
		return c.apply(edits)
	}
	return c.run(func(ctx context.Context, app *App) error {
		diff, err := NewMCPBridge(app).PreviewEdits(ctx, c.ref, edits)
		if err != nil {
			return err
		}
		fmt.Print(diff)
		return nil
	})
}

// apply sends edits to the command's target and reports the outcome
func (c *command) apply(edits []types.PrefEdit) error {
	return c.run(func(ctx context.Context, app *App) error {
		summary, err := NewMCPBridge(app).ApplyEdits(ctx, c.ref, edits)
		if summary != nil {
			fmt.Printf("Applied %d edit(s)", summary.Applied)
			if summary.Pending > 0 {
				fmt.Printf(", %d not applied", summary.Pending)
			}
			fmt.Println()
		}
		return err
	})
}

func readEdits(raw string) ([]types.PrefEdit, error) {
	if raw == "" {
		return nil, fmt.Errorf("-edits is required")
	}
	data := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		var err error
		if data, err = os.ReadFile(raw[1:]); err != nil {
			return nil, err
		}
	}
	var edits []types.PrefEdit
	if err := json.Unmarshal(data, &edits); err != nil {
		return nil, fmt.Errorf("invalid edits: %w", err)
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("no edits given")
	}
	return edits, nil
}

func cmdHistory(args []string) error {
	c := newCommand("history")
	target := c.fs.String("target", "", "only edits of this target")
	status := c.fs.String("status", "", "applied or failed")
	limit := c.fs.Int("limit", 20, "maximum number of records")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	return c.run(func(ctx context.Context, app *App) error {
		records, err := app.History(EditQuery{Target: *target, Status: *status, Limit: *limit})
		if err != nil {
			return err
		}
		for _, r := range records {
			line := fmt.Sprintf("%s [%s] %s %s %s", formatMillis(r.CreatedAt), r.Status, r.Operation, r.Target, r.Matcher)
			if r.Error != "" {
				line += " (" + r.Error + ")"
			}
			fmt.Println(line)
		}
		return nil
	})
}

func cmdRecent(args []string) error {
	c := newCommand("recent")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	return c.run(func(ctx context.Context, app *App) error {
		for _, r := range app.RecentFiles() {
			fmt.Printf("%s  %s\n", time.Unix(r.OpenedAt, 0).Format("2006-01-02 15:04:05"), r.Target)
		}
		return nil
	})
}

func cmdWatch(args []string) error {
	c := newCommand("watch")
	path := c.fs.String("path", "", "local preference file")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("watch: -path is required")
	}
	return c.run(func(ctx context.Context, app *App) error {
		target, err := app.ResolveTarget(types.FileRef{Path: *path})
		if err != nil {
			return err
		}
		session, err := app.OpenSession(ctx, target)
		if err != nil {
			return err
		}
		defer app.CloseSession(target)
		printSnapshot(snapshot(session))

		watcher, err := NewPrefWatcher(session, func(err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
				return
			}
			fmt.Println()
			printSnapshot(snapshot(session))
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()

		<-ctx.Done()
		return nil
	})
}

func cmdMCP(args []string) error {
	c := newCommand("mcp")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	return c.run(func(ctx context.Context, app *App) error {
		return mcp.NewMCPServer(NewMCPBridge(app)).Start()
	})
}

func cmdLogs(args []string) error {
	c := newCommand("logs")
	n := c.fs.Int("n", 50, "number of lines")
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	return c.run(func(ctx context.Context, app *App) error {
		lines, err := ReadRecentLogs(*n)
		if err != nil {
			return fmt.Errorf("%w (set log.file = true in the config)", err)
		}
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	})
}

func printSnapshot(snap *types.PrefSnapshot) {
	fmt.Printf("%s (%s, %d entries)\n", snap.Target, snap.Type, len(snap.Entries))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range snap.Entries {
		value := e.Value
		if e.Kind == "set" {
			value = "[" + strings.Join(e.Entries, ", ") + "]"
		}
		state := ""
		if e.State != "none" {
			state = e.State
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", e.Key, e.Kind, value, state)
	}
	w.Flush()
	if len(snap.Duplicates) > 0 {
		fmt.Printf("Duplicate keys (last wins): %s\n", strings.Join(snap.Duplicates, ", "))
	}
	if len(snap.Skipped) > 0 {
		fmt.Printf("Unsupported entries: %s\n", strings.Join(snap.Skipped, ", "))
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
