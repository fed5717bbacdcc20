package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fizzworks/fountd"
)

// This example loads a TOML config file and serves the supervisor with it.
func main() {
	cfg, err := fountd.LoadConfig("fountd.toml")
	if err != nil {
		panic(err)
	}

	svc, err := fountd.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = svc.Close() }()

	svc.Start()
	srv := svc.Serve()
	fmt.Println("dispensing service listening on", srv.Addr)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}
