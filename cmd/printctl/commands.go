package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/print-hub-api/internal/service"
	"github.com/noah-isme/print-hub-api/pkg/config"
	"github.com/noah-isme/print-hub-api/pkg/gateway"
	"github.com/noah-isme/print-hub-api/pkg/pricing"
	"github.com/noah-isme/print-hub-api/pkg/storage"
)

func openStore(dir string) (*storage.BlobStore, error) {
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		dir = cfg.Storage.Dir
	}
	return storage.NewBlobStore(dir)
}

func sweepCmd() *cobra.Command {
	var (
		dir    string
		maxAge time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete uploads older than the retention age",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(dir)
			if err != nil {
				return err
			}
			deleted := service.NewRetentionService(store, maxAge, 0, nil, zap.NewNop()).Sweep()
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d file(s) from %s\n", deleted, store.Dir())
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Upload directory (defaults to STORAGE_DIR)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Delete files last modified before now minus max-age")
	return cmd
}

func filesCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List stored uploads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(dir)
			if err != nil {
				return err
			}
			files, err := service.NewFileService(store, nil, false, zap.NewNop()).List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE (MB)\tMODIFIED")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.SizeInMB, f.Modified.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Upload directory (defaults to STORAGE_DIR)")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for seeding admin_users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), cost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func checksumCmd() *cobra.Command {
	var (
		key    string
		verify string
	)
	cmd := &cobra.Command{
		Use:   "checksum KEY=VALUE...",
		Short: "Compute or verify a gateway checksum over the given parameters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("--merchant-key is required")
			}
			params, err := parseParams(args)
			if err != nil {
				return err
			}
			if verify != "" {
				if !gateway.Verify(params, key, verify) {
					return fmt.Errorf("checksum mismatch")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "checksum ok")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), gateway.Checksum(params, key))
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "merchant-key", "", "Merchant secret")
	cmd.Flags().StringVar(&verify, "verify", "", "Checksum to verify instead of printing one")
	return cmd
}

func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q must look like KEY=VALUE", arg)
		}
		if k == gateway.ChecksumField {
			continue
		}
		params[k] = v
	}
	return params, nil
}

func quoteCmd() *cobra.Command {
	var (
		pages    int
		selected []int
		opts     pricing.Options
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a print job",
		RunE: func(cmd *cobra.Command, args []string) error {
			var b pricing.Breakdown
			if len(selected) > 0 {
				b = pricing.Quote(selected, opts)
			} else {
				if pages < 1 {
					return fmt.Errorf("--pages or --select is required")
				}
				b = pricing.QuoteCount(pages, opts)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pages: %d (color %d, b&w %d)\n", b.TotalPages, b.ColorPages, b.BWPages)
			fmt.Fprintf(out, "total: %s\n", b.Total.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 0, "Page count")
	cmd.Flags().IntSliceVar(&selected, "select", nil, "Selected page numbers")
	cmd.Flags().BoolVar(&opts.Color, "color", false, "Print in color")
	cmd.Flags().IntVar(&opts.Copies, "copies", 1, "Copies")
	return cmd
}
