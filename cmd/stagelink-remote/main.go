package main

import (
	"flag"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stagelinkmusic/stagelink/internal/netsync"
)

func main() {
	addr := flag.String("addr", "", "connect to host:port instead of discovering")
	flag.Parse()

	// TUI output owns the terminal; route the log package away from it.
	logFile, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err == nil {
		log.SetOutput(logFile)
		defer logFile.Close()
	}

	var program *tea.Program
	client := netsync.NewClient(netsync.ClientConfig{
		OnState: func(s netsync.RemoteState) {
			if program != nil {
				program.Send(stateMsg(s))
			}
		},
		OnStatus: func(s netsync.Status) {
			if program != nil {
				program.Send(statusMsg(s))
			}
		},
	})
	defer client.Close()

	program = tea.NewProgram(newModel(client, *addr), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("remote UI failed: %v", err)
	}
}
