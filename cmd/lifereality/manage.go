package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"life-reality/internal/auth"
	"life-reality/internal/importer"
	"life-reality/internal/model"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newImportCmd(a *app) *cobra.Command {
	var opts importer.Options
	cmd := &cobra.Command{
		Use:   "import [url]",
		Short: "Import a web page as a new article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			art, err := importer.New(st, a.logger).Import(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", art.ID, art.Slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.CategoryID, "category", "", "Category id for the new article (required)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "Author name (defaults to the page byline)")
	cmd.Flags().BoolVar(&opts.Featured, "featured", false, "Mark the article as featured")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Download timeout")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the administrator account",
	}

	var username string
	var plain bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the administrator credentials (password read from stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			admin := model.Admin{Username: username}
			if plain {
				admin.Password = password
			} else {
				admin.PasswordHash, err = auth.HashPassword(password)
				if err != nil {
					return err
				}
			}

			st, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			if err := st.SetAdmin(cmd.Context(), admin); err != nil {
				return err
			}
			a.logger.Info("Admin updated", zap.String("username", username), zap.Bool("hashed", !plain))
			return nil
		},
	}
	set.Flags().StringVar(&username, "username", "admin", "Administrator username")
	set.Flags().BoolVar(&plain, "plain", false, "Store the password as plain text instead of a bcrypt hash")

	cmd.AddCommand(set)
	return cmd
}

func newHashPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash of the password read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newCategoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "List and edit categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			cats, err := st.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSLUG")
			for _, c := range cats {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Slug)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add [name]",
		Short: "Create a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			c, err := st.SaveCategory(cmd.Context(), model.CategoryInput{Name: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.ID, c.Slug)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename [id] [name]",
		Short: "Rename a category (its slug is kept)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			_, err = st.SaveCategory(cmd.Context(), model.CategoryInput{ID: args[0], Name: strings.Join(args[1:], " ")})
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a category that no article uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return st.DeleteCategory(cmd.Context(), args[0])
		},
	})
	return cmd
}

func newArticleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "article",
		Short: "List and remove articles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List articles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			articles, err := st.ListArticles(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSLUG\tCATEGORY\tFEATURED\tCREATED")
			for _, art := range articles {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
					art.ID, art.Slug, art.Category.Name, art.Featured, art.CreatedAt.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm [id]",
		Short: "Delete an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return st.DeleteArticle(cmd.Context(), args[0])
		},
	})
	return cmd
}

// readPassword takes the first line of stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	return password, nil
}
