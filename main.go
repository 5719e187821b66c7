package main

import "github.com/csae-toolkit/csae/cmd"

// Set with -ldflags "-X main.version=..." at release time.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	cmd.Execute(cmd.Metadata{Version: version, Commit: commit, Date: date})
}
