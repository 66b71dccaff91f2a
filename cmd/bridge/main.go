package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blue-robotics/nmea-bridge/aggregate"
	"github.com/blue-robotics/nmea-bridge/httpapi"
	"github.com/blue-robotics/nmea-bridge/link"
	"github.com/blue-robotics/nmea-bridge/reader"
	"github.com/blue-robotics/nmea-bridge/state"
	"github.com/blue-robotics/nmea-bridge/udpfanout"
)

func main() {
	statePath := flag.String("state", "nmea-bridge-state.json", "path to the persisted configuration file")
	rawLogPath := flag.String("raw-log", "nmea-messages.log", "path to the raw sentence log file")
	httpAddr := flag.String("http", ":6440", "address to serve the HTTP control surface on")
	udpAddr := flag.String("udp", "host.docker.internal:27000", "address to fan out raw sentences to over UDP")
	connectTimeout := flag.Duration("connect-timeout", 30*time.Second, "timeout for the startup auto-connect attempt")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.Default()

	st, err := state.Open(*statePath)
	if err != nil {
		log.Fatalf("# loading state from %s: %v\n", *statePath, err)
	}
	cfg := st.Get()
	fmt.Printf("# loaded state from %s (device=%q baud=%d)\n", *statePath, cfg.DevicePath, cfg.PreferredBaud)

	lm := link.New(logger)
	agg := aggregate.New()
	fo := udpfanout.New(logger)
	fo.SetAddress(*udpAddr)
	fo.SetSelectedTypes(cfg.SelectedMessageTypes)

	rd := reader.New(lm, agg, fo, logger)

	rawLog, err := httpapi.OpenRawLog(*rawLogPath)
	if err != nil {
		fmt.Printf("# raw sentence log disabled: %v\n", err)
	} else {
		rd.SetRawLog(rawLog)
		defer rawLog.Close()
	}

	if cfg.AutoConnect && cfg.DevicePath != "" {
		connectCtx, connectCancel := context.WithTimeout(ctx, *connectTimeout)
		if err := lm.Connect(connectCtx, cfg.DevicePath, cfg.PreferredBaud, cfg.SentenceConfig); err != nil {
			fmt.Printf("# auto-connect to %s failed: %v\n", cfg.DevicePath, err)
		} else {
			fmt.Printf("# auto-connected to %s at %d baud\n", lm.Path(), lm.Baud())
			rd.Start()
		}
		connectCancel()
	}
	if cfg.AutoStream {
		fo.Start()
		fmt.Printf("# auto-streaming to %s\n", *udpAddr)
	}

	srv := httpapi.New(lm, rd, agg, fo, st, logger)
	srv.RawLog = rawLog
	httpServer := &http.Server{Addr: *httpAddr, Handler: srv.Handler()}

	go func() {
		fmt.Printf("# serving control surface on %s\n", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("# http server: %v\n", err)
		}
	}()

	<-ctx.Done()
	fmt.Printf("# shutting down\n")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	fo.Stop()
	fo.Close()
	rd.Stop()
	_ = lm.Disconnect()
}
