package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"forma-server/internal/database"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultDatabaseDir = "/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "forma.db")

	db, err := database.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open catalog: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close catalog: %v\n", err)
		}
	}()

	switch command {
	case "status":
		if !showStatus(ctx, db) {
			os.Exit(1)
		}
	case "purge":
		if !purgeDeleted(ctx, db) {
			os.Exit(1)
		}
	case "clear-thumbnails":
		if !clearThumbnails(ctx, db) {
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Forma Catalog Maintenance")
	fmt.Println("")
	fmt.Println("Usage: formadm <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  status            - Show catalog row counts")
	fmt.Println("  purge             - Permanently remove soft-deleted assets")
	fmt.Println("  clear-thumbnails  - Delete every stored thumbnail")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}

func showStatus(ctx context.Context, db *database.Database) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats, err := db.GetStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read catalog stats: %v\n", err)
		return false
	}

	fmt.Printf("Active assets:      %d\n", stats.ActiveAssets)
	fmt.Printf("Soft-deleted:       %d\n", stats.DeletedAssets)
	fmt.Printf("Stored thumbnails:  %d\n", stats.Thumbnails)
	fmt.Printf("Watched folders:    %d\n", stats.Folders)
	return true
}

func purgeDeleted(ctx context.Context, db *database.Database) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	purged, err := db.PurgeDeletedAssets(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to purge deleted assets: %v\n", err)
		return false
	}

	fmt.Printf("Purged %d soft-deleted assets.\n", purged)
	return true
}

func clearThumbnails(ctx context.Context, db *database.Database) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cleared, err := db.ClearAllThumbnails(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to clear thumbnails: %v\n", err)
		return false
	}

	fmt.Printf("Cleared %d thumbnails. They will be regenerated on demand.\n", cleared)
	return true
}
