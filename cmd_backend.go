package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/peer"
	"github.com/spf13/cobra"
)

func backendCmd(verbose *bool) *cobra.Command {
	var (
		root          string
		addr          string
		publicDir     string
		eventsDir     string
		automationDir string
		pluginDir     string
		keyPath       string
		pubKeyPath    string
		configPath    string
		remoteLogAddr string
		dashboardAddr string
	)

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "start this peer as the LAN's backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := newLogger(root, *verbose)
			if err != nil {
				return err
			}
			defer closeLog()
			log.Info("main: starting [BACKEND]...")

			updated, err := checkForUpdate(root, log)
			if err != nil {
				log.Errorf("main: update check: %v", err)
			} else if updated {
				os.Exit(exitRestart)
			}

			b, err := peer.RunBackend(peer.BackendConfig{
				Addr:          addr,
				PublicDir:     resolve(root, publicDir),
				EventsDir:     resolve(root, eventsDir),
				AutomationDir: resolve(root, automationDir),
				PluginDir:     pluginDirOrEmpty(root, pluginDir),
				KeyPath:       resolve(root, keyPath),
				PubKeyPath:    resolve(root, pubKeyPath),
				ConfigPath:    resolve(root, configPath),
				RemoteLogAddr: remoteLogAddr,
				DashboardAddr: dashboardAddr,
				Log:           log,
			})
			if err != nil {
				return fmt.Errorf("start backend: %w", err)
			}

			waitForSignal(log)
			b.Shutdown()
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "install root log files and relative paths resolve against")
	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0:4001", "listen address")
	cmd.Flags().StringVar(&publicDir, "public-dir", "public", "static files served ahead of the function router")
	cmd.Flags().StringVar(&eventsDir, "events-dir", "events", "directory of event trigger definitions")
	cmd.Flags().StringVar(&automationDir, "automation-dir", "automations", "directory of scheduled automation definitions")
	cmd.Flags().StringVar(&pluginDir, "plugin-dir", "", "directory of dynamically loaded .so plugins (empty disables)")
	cmd.Flags().StringVar(&keyPath, "key", "backend.pem", "backend RSA private key path")
	cmd.Flags().StringVar(&pubKeyPath, "pubkey", "backend.pub", "backend RSA public key path")
	cmd.Flags().StringVar(&configPath, "config", "config.json", "configuration document path")
	cmd.Flags().StringVar(&remoteLogAddr, "remote-log-addr", "", "ship WARNING+ log records to this peer's /log endpoint")
	cmd.Flags().StringVar(&dashboardAddr, "dashboard", "", "address for the dashboard HTTP server (empty disables it)")
	return cmd
}

// resolve joins rel onto root unless rel is already absolute.
func resolve(root, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(root, rel)
}

// pluginDirOrEmpty resolves rel against root unless rel is empty, in
// which case it stays empty so RunBackend skips plugin loading.
func pluginDirOrEmpty(root, rel string) string {
	if rel == "" {
		return ""
	}
	return resolve(root, rel)
}

// waitForSignal blocks until SIGINT or SIGTERM arrives, logging the
// shutdown the way main.py's launcher prints before exiting.
func waitForSignal(log *logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("main: received signal %s; shutting down", sig)
}
