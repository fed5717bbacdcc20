package main

import (
	"fmt"

	"github.com/fizzworks/fountd"
)

// This example embeds the dispensing supervisor in another program instead of
// running the fountd binary. It wires the service from the default config and
// mounts the HTTP surface on its own server.
func main() {
	cfg := fountd.DefaultConfig()
	cfg.Controller.Address = "192.168.4.20"
	cfg.Server.Listen = ":8080"

	svc, err := fountd.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = svc.Close() }()

	svc.Start()
	srv := svc.Serve()
	fmt.Println("dispensing service listening on", srv.Addr)
	select {}
}
