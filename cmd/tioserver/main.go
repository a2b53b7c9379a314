package main

import (
	"net"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/fren29/tiodb/internal/metrics"
	"github.com/fren29/tiodb/internal/registry"
	"github.com/fren29/tiodb/internal/session"
)

// VERSION is populated via build flags when packaging official
// binaries.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "tioserver"
	app.Usage = "in-memory multi-container data server"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen, l",
			Value: ":7010",
			Usage: "TCP address to accept client sessions on",
		},
		cli.StringFlag{
			Name:  "metrics",
			Value: ":9010",
			Usage: "address to serve Prometheus metrics on, empty to disable",
		},
		cli.StringFlag{
			Name:  "loglevel",
			Value: "info",
			Usage: "panic, fatal, error, warn, info, debug or trace",
		},
		cli.Int64Flag{
			Name:  "hardsendcap",
			Value: session.HardSendCap,
			Usage: "per-session send queue hard cap in bytes before disconnecting the client",
		},
		cli.Int64Flag{
			Name:  "highwatermark",
			Value: session.HighWatermark,
			Usage: "per-session send queue high watermark in bytes",
		},
		cli.Int64Flag{
			Name:  "lowwatermark",
			Value: session.LowWatermark,
			Usage: "per-session send queue low watermark in bytes",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("tioserver exited")
	}
}

func run(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("loglevel"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	log := logrus.NewEntry(logrus.StandardLogger())

	session.HardSendCap = c.Int64("hardsendcap")
	session.HighWatermark = c.Int64("highwatermark")
	session.LowWatermark = c.Int64("lowwatermark")

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return errors.Wrap(err, "register metrics")
	}
	if addr := c.String("metrics"); addr != "" {
		go serveMetrics(addr, log)
	}

	ln, err := net.Listen("tcp", c.String("listen"))
	if err != nil {
		return errors.Wrap(err, "listen()")
	}
	log.WithField("addr", ln.Addr().String()).Info("tioserver listening")

	reg := registry.New()
	text := newDispatcher(reg)
	bin := &binaryDispatcher{text}

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.WithError(err).Error("accept failed")
			return err
		}
		go handleConn(conn, log, text, bin)
	}
}

func handleConn(conn net.Conn, log *logrus.Entry, text *dispatcher, bin *binaryDispatcher) {
	s := session.New(conn, log)
	log.WithFields(logrus.Fields{
		"session_id": s.ID(),
		"remote":     conn.RemoteAddr().String(),
	}).Info("session accepted")

	session.Serve(s, conn, text, bin)
	conn.Close()
}

func serveMetrics(addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.WithField("addr", addr).Info("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server failed")
	}
}
