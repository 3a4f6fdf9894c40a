package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yuvaraj-ayla/lanmode/pkg/lanconfig"
	"github.com/yuvaraj-ayla/lanmode/pkg/persistence"
)

var errNoKeyStore = errors.New("no key store configured (use --key-store or key_store)")

func keysCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage cached LAN keys",
	}
	cmd.AddCommand(keysImportCmd(opts), keysListCmd(opts))
	return cmd
}

func keysImportCmd(opts *options) *cobra.Command {
	var keepAlive int
	cmd := &cobra.Command{
		Use:   "import <dsn> <key-id> <key>",
		Short: "Store the LAN key of a device in the key cache",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid key id %q: %w", args[1], err)
			}
			store, err := opts.keyStoreFor()
			if err != nil {
				return err
			}
			err = store.Save(args[0], &lanconfig.Config{
				KeyID:     lanconfig.IntPtr(keyID),
				Key:       args[2],
				KeepAlive: keepAlive,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored LAN key %d for %s\n", keyID, args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&keepAlive, "keep-alive", 0, "cloud keep_alive in seconds")
	return cmd
}

func keysListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List devices with a cached LAN key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.keyStoreFor()
			if err != nil {
				return err
			}
			dsns, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(dsns) == 0 {
				fmt.Fprintln(out, "No cached LAN keys")
				return nil
			}
			for _, dsn := range dsns {
				c, err := store.Load(dsn)
				if err != nil {
					return err
				}
				keyID := "-"
				if c.KeyID != nil {
					keyID = strconv.Itoa(*c.KeyID)
				}
				fmt.Fprintf(out, "%s  key_id=%s  keep_alive=%d\n", dsn, keyID, c.KeepAlive)
			}
			return nil
		},
	}
}

func (o *options) keyStoreFor() (*persistence.KeyStore, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	if cfg.KeyStore == "" {
		return nil, errNoKeyStore
	}
	return persistence.NewKeyStore(cfg.KeyStore, o.passphrase), nil
}
