package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	// database drivers for the demo
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shaffooo/nplusone"
	"github.com/shaffooo/nplusone/orm/conn"
	"github.com/shaffooo/nplusone/orm/resolve"
	"github.com/shaffooo/nplusone/orm/schema"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a small blog workload that triggers and then avoids N+1 queries",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().String("driver", "sqlite3", "database driver (sqlite3 or postgres)")
	demoCmd.Flags().String("dsn", ":memory:", "database connection string")

	viper.SetEnvPrefix("nplusone")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("driver", demoCmd.Flags().Lookup("driver"))
	_ = viper.BindPFlag("dsn", demoCmd.Flags().Lookup("dsn"))
}

func runDemo(cmd *cobra.Command, args []string) error {
	driver := viper.GetString("driver")
	dsn := viper.GetString("dsn")

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	c := conn.Default.Register("default", db)

	placeholder := resolve.DollarPlaceholder
	if driver == "sqlite3" {
		placeholder = resolve.QuestionPlaceholder
	}

	if err := seed(ctx, c, placeholder); err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}
	resolver := resolve.NewResolver(c, demoSchemas(), resolve.WithPlaceholder(placeholder))

	nplusone.Install(nplusone.WithLogger(logger))

	posts, err := loadPosts(ctx, c, resolver)
	if err != nil {
		return err
	}

	color.Yellow("-- naive iteration: one author query per post --")
	for _, post := range posts {
		author, err := post.Related(ctx, "author")
		if err != nil {
			return err
		}
		printPost(post, author)
	}

	// fresh instances, then batch the author fetch up front
	posts, err = loadPosts(ctx, c, resolver)
	if err != nil {
		return err
	}
	if err := resolver.Prefetch(ctx, posts, "author"); err != nil {
		return err
	}

	color.Green("-- prefetched: same loop, no warnings --")
	for _, post := range posts {
		author, err := post.Related(ctx, "author")
		if err != nil {
			return err
		}
		printPost(post, author)
	}

	return nil
}

// demoSchemas declares the blog resources
func demoSchemas() map[string]*schema.ResourceSchema {
	user := schema.NewResourceSchema("User")
	user.AddRelationship(&schema.Relationship{
		Name:           "post",
		Type:           schema.RelationshipHasMany,
		TargetResource: "Post",
		ForeignKey:     "author_id",
		RelatedName:    "posts",
	})

	post := schema.NewResourceSchema("Post")
	post.AddRelationship(&schema.Relationship{
		Name:           "author",
		Type:           schema.RelationshipBelongsTo,
		TargetResource: "User",
		ForeignKey:     "author_id",
	})

	return map[string]*schema.ResourceSchema{"User": user, "Post": post}
}

// seed creates and populates the demo tables
func seed(ctx context.Context, c *conn.Conn, placeholder resolve.Placeholder) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS posts (id TEXT PRIMARY KEY, title TEXT NOT NULL, author_id TEXT NOT NULL)`,
		`DELETE FROM posts`,
		`DELETE FROM users`,
	}
	for _, stmt := range statements {
		if _, err := c.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	insertUser := fmt.Sprintf(`INSERT INTO users (id, name) VALUES (%s, %s)`,
		placeholder(1), placeholder(2))
	insertPost := fmt.Sprintf(`INSERT INTO posts (id, title, author_id) VALUES (%s, %s, %s)`,
		placeholder(1), placeholder(2), placeholder(3))

	authors := []string{"Ada", "Grace", "Barbara"}
	for _, name := range authors {
		authorID := uuid.NewString()
		if _, err := c.ExecContext(ctx, insertUser, authorID, name); err != nil {
			return err
		}
		for i := 1; i <= 3; i++ {
			if _, err := c.ExecContext(ctx, insertPost,
				uuid.NewString(), fmt.Sprintf("%s's post %d", name, i), authorID); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadPosts reads all posts as resolver instances
func loadPosts(ctx context.Context, c *conn.Conn, resolver *resolve.Resolver) ([]*resolve.Instance, error) {
	rows, err := c.QueryContext(ctx, `SELECT id, title, author_id FROM posts ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*resolve.Instance
	for rows.Next() {
		var id, title, authorID string
		if err := rows.Scan(&id, &title, &authorID); err != nil {
			return nil, err
		}
		post, err := resolver.Instance("Post", map[string]interface{}{
			"id": id, "title": title, "author_id": authorID,
		})
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func printPost(post *resolve.Instance, author interface{}) {
	name := "unknown"
	if record, ok := author.(map[string]interface{}); ok {
		if n, ok := record["name"].(string); ok {
			name = n
		}
	}
	fmt.Printf("  %v by %s\n", post.Attrs["title"], name)
}
