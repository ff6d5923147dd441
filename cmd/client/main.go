package main

import "chatsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
