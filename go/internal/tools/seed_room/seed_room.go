package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/planningpoker/go/clients/pokerclient"
)

// Seat mirrors one entry of the roster file
type Seat struct {
	Name  string  `json:"name"`
	Seat  *int    `json:"seat"`
	Vote  *string `json:"vote"`
	Leave bool    `json:"leave"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "planning poker server")
	roomID := flag.String("room", "", "room code; a new room is created when empty")
	roster := flag.String("roster", "go/internal/assets/roster.json", "JSON roster of participants")
	reveal := flag.Bool("reveal", true, "reveal the votes once everybody voted")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// 1) Load the roster
	data, err := os.ReadFile(*roster)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var seats []Seat
	if err := json.Unmarshal(data, &seats); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Pick the room
	if *roomID == "" {
		if *roomID, err = pokerclient.CreateRoom(ctx, *server); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create room: %v\n", err)
			os.Exit(1)
		}
	}

	// 3) Connect, join and vote
	var (
		total  = len(seats)
		joined int
		voted  int
		errs   int
	)

	clients := make([]*pokerclient.PokerClient, 0, len(seats))
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()

	for _, s := range seats {
		c := pokerclient.NewPokerClient(*server, *roomID, uuid.NewString(), s.Name)
		if err := c.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error connecting %s: %v\n", s.Name, err)
			errs++
			continue
		}
		clients = append(clients, c)

		if err := c.Join(s.Seat); err != nil {
			fmt.Fprintf(os.Stderr, "error joining %s: %v\n", s.Name, err)
			errs++
			continue
		}
		joined++

		if s.Vote != nil {
			if err := c.Vote(s.Vote); err != nil {
				fmt.Fprintf(os.Stderr, "error voting for %s: %v\n", s.Name, err)
				errs++
				continue
			}
			voted++
		}

		if s.Leave {
			if err := c.Leave(); err != nil {
				fmt.Fprintf(os.Stderr, "error leaving %s: %v\n", s.Name, err)
				errs++
			}
		}
	}

	if *reveal && len(clients) > 0 {
		if err := clients[0].Reveal(true); err != nil {
			fmt.Fprintf(os.Stderr, "error revealing: %v\n", err)
			errs++
		}
	}

	// 4) Print summary
	time.Sleep(500 * time.Millisecond)
	fmt.Printf(
		"Room %s seeded: %d total, %d joined, %d voted, %d errors\n",
		*roomID, total, joined, voted, errs,
	)

	if len(clients) > 0 {
		info, err := clients[0].RoomInfo(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error fetching room: %v\n", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(out))
	}
}
