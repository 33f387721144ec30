package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"nescore/emu/log"
)

type mode byte

const (
	runMode       mode = iota // Run a ROM
	romInfosMode              // Show ROM infos
	stateInfoMode             // Dump a save-state file
	versionMode               // Show nescore version
)

type (
	CLI struct {
		Run       Run       `cmd:"" help:"Run ROM in emulator."`
		RomInfos  RomInfos  `cmd:"" help:"Show ROM infos." name:"rom-infos"`
		StateInfo StateInfo `cmd:"" help:"Dump a save-state file as JSON." name:"state-info"`
		Version   Version   `cmd:"" help:"Show nescore version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Run struct {
		RomPath string `arg:"" name:"/path/to/rom" help:"ROM to run." required:"true" type:"existingfile"`

		Frames      int64    `name:"frames" help:"${frames_help}" default:"0"`
		Config      string   `name:"config" help:"${config_help}" type:"existingfile"`
		Granularity string   `name:"granularity" help:"${granularity_help}" placeholder:"cycle|instruction"`
		Trace       *outfile `name:"trace" help:"Write CPU trace log." placeholder:"FILE|stdout|stderr"`
		Wav         string   `name:"wav" help:"Write audio output to a WAV file." type:"path"`
		Screenshot  string   `name:"screenshot" help:"Save the last frame as a PNG file." type:"path"`
		LoadState   string   `name:"load-state" help:"Load state from file before running." type:"existingfile"`
		SaveState   string   `name:"save-state" help:"Save state to file after running." type:"path"`
		CPUProfile  string   `name:"cpuprofile" help:"Write CPU profile to file." type:"path"`
	}

	RomInfos struct {
		RomPaths []string `arg:"" name:"/path/to/rom" type:"existingfile"`
	}

	StateInfo struct {
		StatePath string `arg:"" name:"/path/to/state" type:"existingfile"`
		Blobs     bool   `name:"blobs" help:"Include memory contents (base64)."`
	}

	Version struct{}
)

var vars = kong.Vars{
	"frames_help":      "Number of frames to run, 0 runs until interrupted.",
	"config_help":      "Configuration file to use instead of the default one.",
	"granularity_help": "Scheduler granularity (cycle or instruction), overrides the configuration.",
	"log_help":         "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("nescore"),
		kong.Description("NES emulator core."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch cmd := ctx.Command(); {
	case strings.HasPrefix(cmd, "rom-infos"):
		cfg.mode = romInfosMode
	case strings.HasPrefix(cmd, "state-info"):
		cfg.mode = stateInfoMode
	case cmd == "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "run") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
