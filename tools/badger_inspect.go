package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"kutter/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Config of the inspector. It reads the server's BADGER_FILEPATH.
type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	Limit          int    `envconfig:"INSPECT_LIMIT" default:"0"`
	BodyWidth      int    `envconfig:"INSPECT_BODY_WIDTH" default:"60"`
}

// Prints the stored messages as a table, without stopping the server.
func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Config error: ", err)
	}

	db, err := openDB(config.BadgerFilepath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	var limit *int
	if config.Limit > 0 {
		limit = &config.Limit
	}
	messages, err := repositories.ReadMessages(db, slog.Default(), limit)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Time", "User", "Email", "Username", "Message"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, message := range messages {
		table.Append([]string{
			strconv.FormatInt(int64(message.ID), 10),
			message.CreatedAt.Format("2006-01-02 15:04:05"),
			shorten(message.Author.UserID, 8),
			message.Author.Email,
			message.Author.Username,
			shorten(strings.ReplaceAll(message.Body, "\n", " "), config.BodyWidth),
		})
	}
	table.Render()
	fmt.Printf("%d message(s)\n", len(messages))
}

func shorten(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
