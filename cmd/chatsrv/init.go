package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type (
	// Configuration - relay configuration
	Configuration struct {
		// Address - listen address, host:port
		Address string
		// Backoff - delay before the first restart of the relay, doubled after every next restart
		Backoff time.Duration
		// EventQueue - capacity of the queue between client readers and the broker
		EventQueue int
		// MailboxLimit - max num of messages queued for one client, 0 is unlimited
		MailboxLimit int
		// WriteTimeout - max duration of writing one message to client
		WriteTimeout time.Duration
		// ClientIdleTimeout - idle period before client is disconnected, 0 disables it
		ClientIdleTimeout time.Duration
		// ClientHistoryGreets - num of latest messages which are pushed to newly joined client
		ClientHistoryGreets int
		// MaxLineSize - max length of client line in bytes
		MaxLineSize int
		// Verbosity - log verbosity
		Verbosity int
	}
)

const (
	// DefaultAddress - listen address used when no address argument is given
	DefaultAddress = "localhost:8000"
)

var (
	// Config - current configuration of the relay
	Config = Configuration{
		Address:      DefaultAddress,
		Backoff:      time.Second,
		EventQueue:   1024,
		MailboxLimit: 0,
		WriteTimeout: 30 * time.Second,
		MaxLineSize:  4096,
	}

	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = "1.0.0"
)

func init() {
	out := flag.CommandLine.Output()
	printUsage := func() {
		fmt.Fprintf(out, "Launch supervised chat relay over TCP\n\n\t%s [options] [host:port]\n\nDefault address is %s.\nOptions:\n\n", BinaryName, DefaultAddress)
		flag.PrintDefaults()
		fmt.Fprint(out, "\n")
	}
	printError := func(msg string) {
		fmt.Fprintf(out, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, msg)
	}
	flag.Usage = printUsage

	help := false
	flag.BoolVar(&help, "help", false, "Print usage help")
	flag.DurationVar(&Config.Backoff, "backoff", Config.Backoff, "Delay before the first restart, doubled after every next restart.")
	flag.IntVar(&Config.EventQueue, "event-queue", Config.EventQueue, "Capacity of the queue between client readers and the broker.")
	flag.IntVar(&Config.MailboxLimit, "mailbox-limit", Config.MailboxLimit, "Max num of messages queued for one client, 0 is unlimited.")
	flag.DurationVar(&Config.WriteTimeout, "write-timeout", Config.WriteTimeout, "Max duration of writing one message to client, 0 disables it.")
	flag.DurationVar(&Config.ClientIdleTimeout, "client-timeout", Config.ClientIdleTimeout, "Idle duration before client is disconnected, 0 disables it.")
	flag.IntVar(
		&Config.ClientHistoryGreets,
		"history-greets",
		Config.ClientHistoryGreets,
		"Num of latest messages which are pushed to newly joined client.",
	)
	flag.IntVar(&Config.MaxLineSize, "max-line", Config.MaxLineSize, "Max length of client line in bytes.")
	flag.IntVar(&Config.Verbosity, "v", Config.Verbosity, "Log verbosity, 1 logs every connection.")

	flag.Parse()

	if help {
		printUsage()
		os.Exit(0)
	}

	switch flag.NArg() {
	case 0:
	case 1:
		Config.Address = flag.Arg(0)
	default:
		printError("too many arguments, only listen address is expected")
		os.Exit(1)
	}

	if Config.Backoff <= 0 {
		printError("backoff value should be greater 0")
		os.Exit(1)
	}
	if Config.EventQueue < 0 {
		printError("event-queue value should be greater or equal 0")
		os.Exit(1)
	}
	if Config.MailboxLimit < 0 {
		printError("mailbox-limit value should be greater or equal 0")
		os.Exit(1)
	}
	if Config.WriteTimeout < 0 || Config.ClientIdleTimeout < 0 {
		printError("timeout values should be greater or equal 0")
		os.Exit(1)
	}
	if Config.ClientHistoryGreets < 0 {
		printError("history-greets value should be greater or equal 0")
		os.Exit(1)
	}
	if Config.MaxLineSize < 1 {
		printError("max-line value should be greater 0")
		os.Exit(1)
	}
}
