package main

import (
	"context"
	"fmt"

	"github.com/5w1tchy/library-api/internal/auth"
	"github.com/5w1tchy/library-api/internal/repository/redisconnect"
	"github.com/5w1tchy/library-api/internal/repository/sqlconnect"
	"github.com/5w1tchy/library-api/internal/store/catalog"
	"github.com/5w1tchy/library-api/internal/validate"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// withStores opens the database (and Redis when configured, so writes bump
// the catalog cache) for one admin command.
func withStores(ctx context.Context, fn func(db *sqlx.DB, rdb *redis.Client) error) error {
	db, err := sqlconnect.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	rdb, err := redisconnect.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	return fn(db, rdb)
}

var libraryCmd = &cobra.Command{Use: "library", Short: "Manage libraries"}

var libraryCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a library",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		slug, _ := cmd.Flags().GetString("slug")
		name, err := validate.RequireBounded("name", name, 1, 255)
		if err != nil {
			return err
		}
		if slug != "" {
			if slug, err = validate.Slug(slug); err != nil {
				return err
			}
		}
		return withStores(cmd.Context(), func(db *sqlx.DB, rdb *redis.Client) error {
			lib, err := catalog.New(db, rdb).CreateLibrary(cmd.Context(), name, slug)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "library %d created: %s (%s)\n", lib.ID, lib.Name, lib.Slug)
			return nil
		})
	},
}

var bookCmd = &cobra.Command{Use: "book", Short: "Manage books"}

var bookCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a book",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		author, _ := f.GetString("author")
		title, _ := f.GetString("title")
		subtitle, _ := f.GetString("subtitle")
		published, _ := f.GetString("published")

		var nb catalog.NewBook
		var err error
		if nb.Author, err = validate.RequireBounded("author", author, 1, 255); err != nil {
			return err
		}
		if nb.Title, err = validate.RequireBounded("title", title, 1, 255); err != nil {
			return err
		}
		if nb.Subtitle, err = validate.RequireBounded("subtitle", subtitle, 0, 255); err != nil {
			return err
		}
		d, err := validate.Date("published", published)
		if err != nil {
			return err
		}
		nb.PublicationDate = catalog.NewDate(d)

		return withStores(cmd.Context(), func(db *sqlx.DB, rdb *redis.Client) error {
			b, err := catalog.New(db, rdb).CreateBook(cmd.Context(), nb)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "book %d created: %s\n", b.ID, b.Title)
			return nil
		})
	},
}

var copyCmd = &cobra.Command{Use: "copy", Short: "Manage book copies"}

var copyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a copy of a book to a library",
	RunE: func(cmd *cobra.Command, args []string) error {
		library, _ := cmd.Flags().GetString("library")
		bookID, _ := cmd.Flags().GetInt64("book")
		if bookID <= 0 {
			return fmt.Errorf("--book must be a positive id")
		}
		return withStores(cmd.Context(), func(db *sqlx.DB, rdb *redis.Client) error {
			c, err := catalog.New(db, rdb).AddCopy(cmd.Context(), library, bookID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copy %d of book %d added to %s\n", c.ID, c.BookID, library)
			return nil
		})
	},
}

var userCmd = &cobra.Command{Use: "user", Short: "Manage users"}

var userRoleCmd = &cobra.Command{
	Use:   "role",
	Short: "Change a user's role",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		role, _ := cmd.Flags().GetString("role")
		if !auth.ValidRole(role) {
			return fmt.Errorf("unknown role %q (want %s, %s or %s)", role, auth.RoleMember, auth.RoleLibrarian, auth.RoleAdmin)
		}
		return withStores(cmd.Context(), func(db *sqlx.DB, _ *redis.Client) error {
			u, err := auth.NewSQLStore(db).SetRole(cmd.Context(), username, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Username, u.Role)
			return nil
		})
	},
}

func init() {
	libraryCreateCmd.Flags().String("name", "", "Library name")
	libraryCreateCmd.Flags().String("slug", "", "URL slug (derived from the name when empty)")
	_ = libraryCreateCmd.MarkFlagRequired("name")
	libraryCmd.AddCommand(libraryCreateCmd)

	bookCreateCmd.Flags().String("author", "", "Author")
	bookCreateCmd.Flags().String("title", "", "Title")
	bookCreateCmd.Flags().String("subtitle", "", "Subtitle")
	bookCreateCmd.Flags().String("published", "", "Publication date, YYYY-MM-DD")
	for _, f := range []string{"author", "title", "published"} {
		_ = bookCreateCmd.MarkFlagRequired(f)
	}
	bookCmd.AddCommand(bookCreateCmd)

	copyAddCmd.Flags().String("library", "", "Library slug")
	copyAddCmd.Flags().Int64("book", 0, "Book id")
	_ = copyAddCmd.MarkFlagRequired("library")
	_ = copyAddCmd.MarkFlagRequired("book")
	copyCmd.AddCommand(copyAddCmd)

	userRoleCmd.Flags().String("username", "", "Username")
	userRoleCmd.Flags().String("role", "", "member, librarian or admin")
	_ = userRoleCmd.MarkFlagRequired("username")
	_ = userRoleCmd.MarkFlagRequired("role")
	userCmd.AddCommand(userRoleCmd)
}
