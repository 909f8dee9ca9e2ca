// Command controlplane is the single binary every peer on the LAN runs,
// in one of three roles selected by its first positional argument:
// backend (owns devices, scheduler, automations, dashboard), frontend
// (discovers a backend and serves local functions on its behalf), or
// pack (bundles the install tree into a self-update archive). Grounded
// on original_source/src/main.py's argparse-based CLI, rebuilt on
// spf13/cobra the way ehrlich-b-wingthing/cmd/wt/main.go builds its
// subcommand surface.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/update"
	"github.com/spf13/cobra"
)

// currentVersion gates the self-update scan in checkForUpdate: any
// netapi-X.Y.zip in the install root newer than this wins and triggers
// an unpack-then-restart, matching main.py's VERSION constant.
const currentVersion = 0.1

// exitRestart is the process exit code a launcher wrapper watches for
// to mean "unpacked an update, restart me", matching main.py's return 12.
const exitRestart = 12

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:          "controlplane",
		Short:        "distributed home-automation control plane",
		Long:         "Discovers peers on the LAN, exchanges keys, and routes function calls between a backend and its frontends.",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	root.AddCommand(backendCmd(&verbose), frontendCmd(&verbose), packCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the console+file logger every subcommand shares,
// mirroring main.py's setup_logger: a fresh per-run log file and the
// console, both filtered at one level that --verbose lowers to debug.
func newLogger(root string, verbose bool) (*logger.Logger, func(), error) {
	level := logger.LevelInfo
	if verbose {
		level = logger.LevelDebug
	}
	log := logger.New(level)

	sink, err := newFileSink(filepath.Join(root, "logs"))
	if err != nil {
		return nil, nil, err
	}
	log.AddSink(sink)
	return log, func() { sink.Close() }, nil
}

// checkForUpdate scans root for a "netapi-<version>.zip" newer than
// currentVersion, unpacks it in place, and removes the archive,
// matching main.py's update loop. A true return means the caller
// should exit with exitRestart instead of proceeding.
func checkForUpdate(root string, log *logger.Logger) (bool, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false, fmt.Errorf("scan install root: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		if ext != ".zip" || !strings.HasPrefix(base, "netapi-") {
			continue
		}
		var v float64
		if _, err := fmt.Sscanf(strings.TrimPrefix(base, "netapi-"), "%g", &v); err != nil {
			continue
		}
		if v <= currentVersion {
			continue
		}

		log.Infof("main: updating to version %v...", v)
		path := filepath.Join(root, name)
		archive, err := os.ReadFile(path)
		if err != nil {
			return false, fmt.Errorf("read update archive: %w", err)
		}
		if err := update.Unpack(archive, root); err != nil {
			return false, fmt.Errorf("unpack update archive: %w", err)
		}
		if err := os.Remove(path); err != nil {
			log.Warnf("main: remove applied update archive: %v", err)
		}
		return true, nil
	}
	return false, nil
}
