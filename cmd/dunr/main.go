// Command dunr runs compiled Dungeon Spells executables.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dungeonspells/dsvm"
	"github.com/dungeonspells/dsvm/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		logLevel   string
		trace      bool
		lockMemory bool
		dynLibPath string
		tmpLibPath string
	)

	root := &cobra.Command{
		Use:           "dunr",
		Short:         "Dungeon Spells runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var flags *pflag.FlagSet = root.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "warning", "runtime log level")
	flags.BoolVar(&trace, "trace", false, "trace executed instructions")
	flags.BoolVar(&lockMemory, "lock-memory", false, "pin memory pages")
	flags.StringVar(&dynLibPath, "lib-path", ".", "dynamic library search path")
	flags.StringVar(&tmpLibPath, "tmp-path", os.TempDir(), "temp path for private library copies")

	newConfig := func() dsvm.RuntimeConfig {
		cfg := dsvm.NewRuntimeConfig().
			WithTrace(trace).
			WithMemoryLock(lockMemory).
			WithLibPaths(dynLibPath, tmpLibPath)
		if lvl, err := logrus.ParseLevel(logLevel); err == nil {
			cfg = cfg.WithLogLevel(lvl)
		}
		return cfg
	}

	var exitCode int
	runCmd := &cobra.Command{
		Use:   "run <program.dex> [args...]",
		Short: "Execute a program",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := dsvm.NewRuntime(newConfig())
			prog, err := rt.LoadFile(args[0])
			if err != nil {
				return err
			}
			exitCode, err = rt.Run(prog, args[1:]...)
			return err
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info <program.dex>",
		Short: "Print the executable header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := dsvm.NewRuntime(newConfig())
			prog, err := rt.LoadFile(args[0])
			if err != nil {
				return err
			}
			info := prog.Info()
			fmt.Printf("version:        %s (built %s %s)\n", info.Version, info.BuildDate, info.BuildTime)
			fmt.Printf("architecture:   %d-bit\n", info.Architecture)
			fmt.Printf("library:        %v (v%d.%d.%d)\n", info.IsLibrary,
				info.LibVersion[0], info.LibVersion[1], info.LibVersion[2])
			fmt.Printf("debug symbols:  %v\n", info.DebugSymbols)
			fmt.Printf("code bytes:     %d\n", info.CodeBytes)
			fmt.Printf("global bytes:   %d\n", info.GlobalBytes)
			fmt.Printf("blocks:         %d (table %d)\n", info.Blocks, info.BlockMax)
			fmt.Printf("memory units:   %d x %d bytes (chunk %d)\n", info.MemUnits, info.MemUnitSize, info.ChunkUnits)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the runtime version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dunr", version.GetVersion())
		},
	}

	root.AddCommand(runCmd, infoCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}
