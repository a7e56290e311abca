// Package main runs a demo WebSocket client for an agent's route stream:
// it connects, triggers a manual optimization and prints what arrives.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func main() {
	agent := flag.String("agent", "agent-1", "agent id to follow")
	trigger := flag.Bool("optimize", true, "trigger a manual cycle after connecting")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/agents/" + *agent + "/routes/stream"}
	hdr := http.Header{}
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m event
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %v", m.Type, m.Data)
		}
	}()

	if *trigger {
		time.Sleep(500 * time.Millisecond)
		req, _ := http.NewRequest(http.MethodPost, base+"/v1/admin/optimize", nil)
		req.Header.Set("X-Role", "admin")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		_ = resp.Body.Close()
		log.Printf("optimize: %s", resp.Status)
	}

	select {
	case <-time.After(5 * time.Second):
	case <-done:
	}
}
