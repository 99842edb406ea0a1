package main

import (
	"os"

	forumcmder "github.com/Jeremmmyyyyy/forum-rest-api/cmd/forum"
)

func main() {
	cmd := forumcmder.NewForumCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
