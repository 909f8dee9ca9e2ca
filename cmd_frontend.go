package main

import (
	"os"

	"github.com/joanet/controlplane/peer"
	"github.com/spf13/cobra"
)

// frontendOS is the os field this binary announces to the backend at
// login, alongside currentVersion as its version field.
const frontendOS = "go"

func frontendCmd(verbose *bool) *cobra.Command {
	var (
		root       string
		addr       string
		pubKeyPath string
	)

	cmd := &cobra.Command{
		Use:   "frontend",
		Short: "discover a backend and serve local functions for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := newLogger(root, *verbose)
			if err != nil {
				return err
			}
			defer closeLog()
			log.Info("main: starting [FRONTEND]...")

			updated, err := checkForUpdate(root, log)
			if err != nil {
				log.Errorf("main: update check: %v", err)
			} else if updated {
				os.Exit(exitRestart)
			}

			f, err := peer.RunFrontend(peer.FrontendConfig{
				Addr:       addr,
				PubKeyPath: resolve(root, pubKeyPath),
				OS:         frontendOS,
				Version:    currentVersion,
				Log:        log,
			})
			if err != nil {
				log.Warnf("main: login failed: %v. Exiting...", err)
				os.Exit(1)
			}

			log.Infof("main: logged in to backend at %s", f.BackendIP)
			waitForSignal(log)
			f.Shutdown()
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "install root log files and relative paths resolve against")
	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0:4001", "local listen address")
	cmd.Flags().StringVar(&pubKeyPath, "pubkey", "backend.pub", "backend RSA public key path, fetched out of band before first run")
	return cmd
}
