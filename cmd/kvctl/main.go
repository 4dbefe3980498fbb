package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/leonardcser/kvd/internal/client"
	"github.com/leonardcser/kvd/internal/config"
	"github.com/leonardcser/kvd/internal/protocol"
)

const usage = `usage: kvctl [-addr host:port] [-timeout 5s] <command> [args]

commands:
  get <key>
  put <key> <value>    (value "-" reads stdin)
  del <key>
  ping
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kvctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	addr := fs.String("addr", defaultAddr(), "kvd address")
	timeout := fs.Duration("timeout", client.DefaultTimeout, "per-request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	c := client.New(*addr, client.WithTimeout(*timeout))

	var err error
	switch cmd := rest[0]; {
	case cmd == "get" && len(rest) == 2:
		var v string
		if v, err = c.Get(rest[1]); err == nil {
			fmt.Fprintln(stdout, v)
		}
	case cmd == "put" && len(rest) == 3:
		value := rest[2]
		if value == "-" {
			b, rerr := io.ReadAll(stdin)
			if rerr != nil {
				fmt.Fprintf(stderr, "kvctl: read stdin: %v\n", rerr)
				return 1
			}
			value = string(b)
		}
		if err = c.Put(rest[1], value); err == nil {
			fmt.Fprintln(stdout, protocol.Success)
		}
	case cmd == "del" && len(rest) == 2:
		if err = c.Delete(rest[1]); err == nil {
			fmt.Fprintln(stdout, protocol.Success)
		}
	case cmd == "ping" && len(rest) == 1:
		if err = c.Ping(); err == nil {
			fmt.Fprintln(stdout, "ok")
		}
	default:
		fs.Usage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "kvctl: %s\n", protocol.StatusText(err))
		if errors.Is(err, protocol.ErrKeyNotFound) {
			return 3
		}
		return 1
	}
	return 0
}

func defaultAddr() string {
	if a := os.Getenv(config.EnvAddr); a != "" {
		return a
	}
	return config.DefaultAddr
}
