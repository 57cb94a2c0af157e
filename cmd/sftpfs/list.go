package main

import (
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, _, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			p, err := fsys.Path(name)
			if err != nil {
				return err
			}
			entries, err := fsys.ReadDir(cmd.Context(), p)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if long {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %10d %s %s\n",
						entry.Mode(), entry.Size(),
						entry.ModTime().Format("Jan _2 15:04"), entry.Name())
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), entry.Name())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "print mode, size and modification time")
	return cmd
}

func newTreeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "Walk a remote directory recursively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, _, _, cleanup, err := openFS()
			if err != nil {
				return err
			}
			defer cleanup()

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			p, err := fsys.Path(name)
			if err != nil {
				return err
			}
			walker := fsys.Walk(cmd.Context(), p)
			for walker.Step() {
				if err := walker.Err(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", walker.Path(), err)
					continue
				}
				suffix := ""
				if walker.Stat().IsDir() {
					suffix = "/"
				}
				fmt.Fprintln(cmd.OutOrStdout(), walker.Path()+suffix)
			}
			return nil
		},
	}
	return cmd
}

func newStatCommand() *cobra.Command {
	var (
		attrs    string
		noFollow bool
	)

	cmd := &cobra.Command{
		Use:   "stat <path>",
		Short: "Read file attributes",
		Long: `Read file attributes by view and name, such as "basic:size,isDirectory",
"posix:*" or "owner". Without --attrs the whole basic view is printed.`,
		Args: cobra.ExactArgs(1),
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
			values, err := fsys.ReadAttributesByName(cmd.Context(), p, attrs, !noFollow)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			sort.Strings(names)
			width := 0
			for _, name := range names {
				if len(name) > width {
					width = len(name)
				}
			}
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-*s  %v\n", width, name, values[name])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&attrs, "attrs", "a", "*", `attribute spec, "[view:]name,..." or "*"`)
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "stat the link itself instead of its target")
	return cmd
}

func newAttrCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attr <path> <name> <value>",
		Short: "Set a file attribute",
		Long: `Set a single attribute by view and name. Settable attributes are
lastModifiedTime (RFC 3339), permissions (octal), owner and group
(numeric IDs), for example:

  sftpfs attr report.txt posix:permissions 644
  sftpfs attr report.txt basic:lastModifiedTime 2026-01-15T10:30:00Z`,
		Args: cobra.ExactArgs(3),
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
			value, err := parseAttrValue(args[1], args[2])
			if err != nil {
				return err
			}
			return fsys.SetAttribute(cmd.Context(), p, args[1], value)
		},
	}
	return cmd
}

// parseAttrValue converts the command line string into the value type
// the attribute expects. Unknown names pass through as strings and are
// rejected by the attribute table.
func parseAttrValue(name, s string) (any, error) {
	base := name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		base = name[i+1:]
	}
	switch base {
	case "permissions":
		bits, err := strconv.ParseUint(s, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid permissions %q, want octal such as 644", s)
		}
		return fs.FileMode(bits), nil
	case "lastModifiedTime":
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q, want RFC 3339", s)
		}
		return t, nil
	default:
		return s, nil
	}
}
