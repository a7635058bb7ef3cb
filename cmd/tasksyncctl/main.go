package main

import (
	"log"

	"github.com/austindbirch/task_sync/cmd/tasksyncctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
