package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var version = "dev"

var CLI struct {
	Version kong.VersionFlag
	EnvFile string `help:"Dotenv file read before the environment." type:"path" default:".env" name:"env-file"`

	Serve  ServeCmd  `cmd:"" help:"Run the HTTP server and reminder scheduler." default:"1"`
	Import ImportCmd `cmd:"" help:"Import groups from a legacy JSON export."`
	Due    DueCmd    `cmd:"" help:"Print each task's assignee and next due date."`
	Vapid  VapidCmd  `cmd:"" help:"Generate a VAPID key pair for web push."`
	Backup struct {
		Create  BackupCreateCmd  `cmd:"" help:"Write an encrypted backup now." default:"1"`
		List    BackupListCmd    `cmd:"" help:"List stored backups."`
		Restore BackupRestoreCmd `cmd:"" help:"Restore a backup over the database file."`
	} `cmd:"" help:"Manage encrypted database backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("turi"),
		kong.Description("Household chore rotation and reminders"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if err := ctx.Run(&Globals{EnvFile: CLI.EnvFile}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
