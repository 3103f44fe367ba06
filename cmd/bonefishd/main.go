/*
Stand-alone WAMP router service.

*/
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/leoyanggit/bonefish"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-c bonefish.json]\n", os.Args[0])
}

func main() {
	var cfgFile string
	fs := flag.NewFlagSet("bonefishd", flag.ExitOnError)
	fs.StringVar(&cfgFile, "c", "etc/bonefish.json", "Path to config file")
	fs.Usage = usage
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	conf := LoadConfig(cfgFile)

	var logger *log.Logger
	if conf.LogPath == "" {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		f, err := os.OpenFile(conf.LogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		logger = log.New(f, "", log.LstdFlags)
	}

	r, err := bonefish.NewRouter(&conf.Router, logger)
	if err != nil {
		logger.Print(err)
		os.Exit(1)
	}

	var closers []io.Closer

	if conf.WebSocket.Address != "" {
		outQueueSize := conf.WebSocket.OutQueueSize
		wss, err := bonefish.NewWebsocketServer(r, conf.WebSocket.Address, outQueueSize)
		if err != nil {
			logger.Print(err)
			os.Exit(1)
		}
		closers = append(closers, wss)

		sockDesc := "websocket"
		if conf.WebSocket.CertFile != "" && conf.WebSocket.KeyFile != "" {
			sockDesc = "TLS websocket"
			go func() {
				if err := wss.ServeTLS(&tls.Config{}, conf.WebSocket.CertFile, conf.WebSocket.KeyFile); err != nil {
					logger.Println("websocket server stopped:", err)
				}
			}()
		} else {
			go func() {
				if err := wss.Serve(); err != nil {
					logger.Println("websocket server stopped:", err)
				}
			}()
		}
		logger.Printf("Listening for %s connections on %s", sockDesc, wss.URL())
	}

	if conf.RawSocket.TCPAddress != "" || conf.RawSocket.UnixAddress != "" {
		rss := bonefish.NewRawSocketServer(r, conf.RawSocket.MaxMsgLen,
			conf.RawSocket.OutQueueSize, conf.RawSocket.TCPKeepAliveInterval)

		if conf.RawSocket.TCPAddress != "" {
			closer, err := rss.ListenAndServe("tcp", conf.RawSocket.TCPAddress)
			if err != nil {
				logger.Print(err)
				os.Exit(1)
			}
			closers = append(closers, closer)
			logger.Println("Listening for TCP raw socket connections on",
				conf.RawSocket.TCPAddress)
		}
		if conf.RawSocket.UnixAddress != "" {
			closer, err := rss.ListenAndServe("unix", conf.RawSocket.UnixAddress)
			if err != nil {
				logger.Print(err)
				os.Exit(1)
			}
			closers = append(closers, closer)
			logger.Println("Listening for Unix socket connections on",
				conf.RawSocket.UnixAddress)
		}
	}

	if len(closers) == 0 {
		logger.Print("No servers configured")
		os.Exit(1)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt)
	<-shutdown

	exitChan := make(chan struct{})
	go func() {
		select {
		case <-time.After(5 * time.Second):
			logger.Print("Router took too long to stop")
			os.Exit(1)
		case <-exitChan:
		}
	}()

	logger.Print("Shutting down router...")
	for i := range closers {
		closers[i].Close()
	}
	r.Close()
	close(exitChan)
}
