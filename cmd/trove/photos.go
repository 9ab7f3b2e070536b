package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newPhotosCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photos",
		Short: "Manage the private photo area",
		Long:  `Import photos into the trove, resolve stored references, and sweep photos no item uses.`,
	}

	cmd.AddCommand(
		newImportPhotoCommand(opts),
		newResolvePhotoCommand(opts),
		newSweepPhotosCommand(opts),
	)
	return cmd
}

func newImportPhotoCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [path-or-file-uri]",
		Short: "Copy a photo into the trove and print its reference",
		Long: `Copy a photo into the private photo area and print the stored reference. The photo
is not attached to any item; pass the reference to 'items update --photo' or use
'items add --photo' directly. Unattached photos are removed by 'photos sweep'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			ref, err := k.ImportPhoto(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
}

func newResolvePhotoCommand(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "resolve [ref]",
		Short: "Print the file behind a photo reference",
		Long: `Resolve a stored photo reference. Prints the file path, or with --out copies
the photo there. A reference whose file is gone exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			f, ok := k.ResolvePhoto(args[0])
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("photo %q is unavailable", args[0]))
			}
			defer f.Close()

			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), f.Name())
				return nil
			}
			return copyTo(out, f)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Copy the photo to this path")
	return cmd
}

func newSweepPhotosCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete photos that no item references",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := opts.openKeeper(cmd.Context())
			if err != nil {
				return err
			}
			defer k.Close()

			result, err := k.SweepPhotos(cmd.Context())
			for _, ref := range result.Removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", ref)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d unreferenced photos and %d stale temp files.\n",
				len(result.Removed), len(result.TempRemoved))
			return err
		},
	}
}

func copyTo(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to copy photo to %s: %w", path, err)
	}
	return f.Close()
}
