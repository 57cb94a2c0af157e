package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/telebroad/sftpfs/sftpfs"
)

func newRemoveCommand() *cobra.Command {
	var ifExists bool

	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Delete remote files and empty directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, _, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			for _, name := range args {
				p, err := fsys.Path(name)
				if err != nil {
					return err
				}
				if ifExists {
					deleted, err := fsys.DeleteIfExists(cmd.Context(), p)
					if err != nil {
						return err
					}
					if !deleted {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: not found\n", p)
					}
					continue
				}
				if err := fsys.Delete(cmd.Context(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ifExists, "if-exists", false, "ignore missing paths")
	return cmd
}

func newMkdirCommand() *cobra.Command {
	var parents bool

	cmd := &cobra.Command{
		Use:   "mkdir <path>...",
		Short: "Create remote directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, _, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			for _, name := range args {
				p, err := fsys.Path(name)
				if err != nil {
					return err
				}
				if parents {
					if err := mkdirAll(cmd, fsys, p); err != nil {
						return err
					}
					continue
				}
				if err := fsys.CreateDirectory(cmd.Context(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parents, existing directories are not an error")
	return cmd
}

// mkdirAll creates the directory and its missing parents, walking from
// the root down so each level exists before the next is created.
func mkdirAll(cmd *cobra.Command, fsys *sftpfs.FileSystem, p sftpfs.Path) error {
	parent, ok := p.Parent()
	if ok {
		if err := mkdirAll(cmd, fsys, parent); err != nil {
			return err
		}
	}
	err := fsys.CreateDirectory(cmd.Context(), p)
	var exists *sftpfs.FileAlreadyExistsError
	if errors.As(err, &exists) {
		return nil
	}
	return err
}

func newLinkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ln <target> <link>",
		Short: "Create a remote symbolic link",
		Long:  "Create a symbolic link at <link> pointing at <target>. The target is stored as given and may dangle.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, _, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			link, err := fsys.Path(args[1])
			if err != nil {
				return err
			}
			return fsys.CreateSymbolicLink(cmd.Context(), link, args[0])
		},
	}
	return cmd
}
