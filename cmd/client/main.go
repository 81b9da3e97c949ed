package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"wordclash/internal/client"
)

func main() {
	addr := flag.String("addr", "localhost:8888", "server address (host:port for TCP, ws://host:port/ws for WebSocket)")
	name := flag.String("name", "", "display name")
	character := flag.String("character", "knight", "character id")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *name == "" {
		*name = os.Getenv("USER")
	}
	if *name == "" {
		*name = "player"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := client.Dial(ctx, *addr, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	coord := client.NewCoordinator(conn, client.StaticIdentity{Name: *name, Character: *character}, logger)
	defer coord.Close()

	go func() {
		if err := coord.Run(ctx, conn); err != nil {
			logger.Error("connection ended", "error", err)
		}
		stop()
	}()
	go printEvents(coord)

	fmt.Println("commands: list | create [name] | join <room> | start | leave | type <word> | status | quit")
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := run(coord, strings.Fields(line)); quit {
				return
			}
		}
	}
}

// run executes one command line and reports whether the client should exit
func run(coord *client.Coordinator, args []string) bool {
	if len(args) == 0 {
		return false
	}

	var err error
	switch args[0] {
	case "list":
		err = coord.RequestRooms()
	case "create":
		err = coord.CreateRoom(strings.Join(args[1:], " "))
	case "join":
		if len(args) < 2 {
			fmt.Println("usage: join <room>")
			return false
		}
		err = coord.JoinRoom(strings.ToUpper(args[1]))
	case "start":
		err = coord.StartGame()
	case "leave":
		err = coord.LeaveRoom()
	case "type":
		if len(args) < 2 {
			fmt.Println("usage: type <word>")
			return false
		}
		err = typeWord(coord, strings.ToUpper(args[1]))
	case "status":
		printStatus(coord.State())
	case "quit", "exit":
		return true
	default:
		fmt.Printf("unknown command %q\n", args[0])
	}

	if err != nil {
		fmt.Println("error:", err)
	}
	return false
}

// typeWord replays a typed word as keystroke progress and completes it when
// it matches the current word
func typeWord(coord *client.Coordinator, typed string) error {
	target := coord.State().CurrentWord
	for i := 1; i <= len(typed) && i <= len(target); i++ {
		if typed[:i] != target[:i] {
			break
		}
		if err := coord.Progress(i); err != nil {
			return err
		}
	}
	if typed != target {
		fmt.Printf("miss: the word is %s\n", target)
		return nil
	}
	return coord.WordCompleted()
}

func printEvents(coord *client.Coordinator) {
	for ev := range coord.Events() {
		switch e := ev.(type) {
		case client.PhaseChanged:
			fmt.Printf("[%s]\n", e.To)
		case client.RoomsListed:
			if len(e.Rooms) == 0 {
				fmt.Println("no open rooms")
			}
			for _, r := range e.Rooms {
				fmt.Printf("  %s  %-24s %d/%d  %s\n", r.ID, r.Name, len(r.Players), r.MaxPlayers, r.State)
			}
		case client.RoomUpdated:
			fmt.Printf("room %s (%s): %d/%d players\n", e.Room.ID, e.Room.Name, len(e.Room.Players), e.Room.MaxPlayers)
		case client.OpponentJoined:
			fmt.Printf("%s joined\n", e.Player.Name)
		case client.OpponentLeft:
			if e.Disconnected {
				fmt.Println("opponent disconnected")
			} else {
				fmt.Println("opponent left")
			}
		case client.CountdownTicked:
			fmt.Printf("%d...\n", e.Count)
		case client.WordChanged:
			fmt.Printf("type: %s\n", e.Word)
		case client.HealthChanged:
			fmt.Printf("health you=%d opponent=%d\n", e.Own, e.Opponent)
		case client.OpponentAttacked:
			fmt.Println("opponent hit you!")
		case client.MatchOver:
			if e.Won {
				fmt.Printf("you win (%s)\n", e.Reason)
			} else {
				fmt.Printf("you lose (%s)\n", e.Reason)
			}
		case client.Rejected:
			fmt.Printf("%s rejected: %s\n", e.Request, e.Message)
		case client.Disconnected:
			fmt.Println("disconnected from server")
		}
	}
}

func printStatus(s client.State) {
	fmt.Printf("phase=%s player=%s room=%s word=%s\n", s.Phase, s.PlayerID, s.RoomID, s.CurrentWord)
	if s.RoomID != "" {
		fmt.Printf("you: health=%d words=%d\n", s.Own.Health, s.Own.WordsCompleted)
	}
	if s.HasOpponent {
		fmt.Printf("%s: health=%d words=%d progress=%d\n", s.Opponent.Name, s.Opponent.Health, s.Opponent.WordsCompleted, s.OpponentProgress)
	}
}
