package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func foldersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage folders the assistant may access",
	}
	cmd.AddCommand(foldersGrantCmd(), foldersRevokeCmd(), foldersListCmd())
	return cmd
}

func foldersGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <path>",
		Short: "Grant access to a folder and everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			perm, err := s.app.Folders.Grant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Granted %s (id %s)\n", perm.Path, perm.ID)
			return nil
		},
	}
}

func foldersRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a folder grant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.app.Folders.Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Revoked %s\n", args[0])
			return nil
		},
	}
}

func foldersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List granted folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			perms, err := s.app.Folders.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(perms) == 0 {
				fmt.Println("No folders granted.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPATH\tGRANTED")
			for _, p := range perms {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Path, p.GrantedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}
