package main

import (
	"os"

	unistreamcmder "github.com/unistreamhq/unistream/cmd/unistream"
)

func main() {
	cmd := unistreamcmder.NewUnistreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
