package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/telebroad/sftpfs/provider"
	"github.com/telebroad/sftpfs/sftpfs"
)

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <remote> [local]",
		Short: "Download a remote file",
		Long:  "Download a remote file to a local path, or to stdout when the local path is \"-\" or omitted.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, _, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := fsys.Path(args[0])
			if err != nil {
				return err
			}
			r, err := fsys.OpenRead(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer r.Close()

			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			_, err = io.Copy(w, r)
			return err
		},
	}
	return cmd
}

func newPutCommand() *cobra.Command {
	var appendTo bool

	cmd := &cobra.Command{
		Use:   "put <local> <remote>",
		Short: "Upload a local file",
		Long:  "Upload a local file to a remote path, reading stdin when the local path is \"-\".",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, _, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			p, err := fsys.Path(args[1])
			if err != nil {
				return err
			}
			opts := []sftpfs.OpenOption{sftpfs.OpenCreate, sftpfs.OpenTruncate}
			if appendTo {
				opts = []sftpfs.OpenOption{sftpfs.OpenCreate, sftpfs.OpenAppend}
			}
			w, err := fsys.OpenWrite(cmd.Context(), p, opts...)
			if err != nil {
				return err
			}
			_, err = io.Copy(w, r)
			if closeErr := w.Close(); err == nil {
				err = closeErr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&appendTo, "append", false, "append to the remote file instead of truncating")
	return cmd
}

// resolveTransferPath returns the destination path, on the source file
// system or on a second endpoint when destURI is set.
func resolveTransferPath(registry *provider.Registry, fsys *sftpfs.FileSystem, destURI, name string) (sftpfs.Path, error) {
	if destURI == "" {
		return fsys.Path(name)
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return sftpfs.Path{}, err
	}
	cfg.URI = destURI
	dst, err := registry.Open(cfg)
	if err != nil {
		return sftpfs.Path{}, err
	}
	return dst.Path(name)
}

func newCopyCommand() *cobra.Command {
	var (
		replace bool
		destURI string
	)

	cmd := &cobra.Command{
		Use:   "cp <source> <target>",
		Short: "Copy a remote file or directory",
		Long: `Copy a remote file, or a directory without its contents. With
--dest-uri the target lives on a second endpoint and the content is
streamed between the two.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, registry, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			src, err := fsys.Path(args[0])
			if err != nil {
				return err
			}
			dst, err := resolveTransferPath(registry, fsys, destURI, args[1])
			if err != nil {
				return err
			}
			var opts []sftpfs.CopyOption
			if replace {
				opts = append(opts, sftpfs.ReplaceExisting)
			}
			return sftpfs.Copy(cmd.Context(), src, dst, opts...)
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing target")
	cmd.Flags().StringVar(&destURI, "dest-uri", "", "endpoint URI of the target")
	return cmd
}

func newMoveCommand() *cobra.Command {
	var (
		replace bool
		destURI string
	)

	cmd := &cobra.Command{
		Use:   "mv <source> <target>",
		Short: "Move or rename a remote file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, registry, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			src, err := fsys.Path(args[0])
			if err != nil {
				return err
			}
			dst, err := resolveTransferPath(registry, fsys, destURI, args[1])
			if err != nil {
				return err
			}
			var opts []sftpfs.CopyOption
			if replace {
				opts = append(opts, sftpfs.ReplaceExisting)
			}
			return sftpfs.Move(cmd.Context(), src, dst, opts...)
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing target")
	cmd.Flags().StringVar(&destURI, "dest-uri", "", "endpoint URI of the target")
	return cmd
}
