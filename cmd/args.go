package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"vanish/internal/catalog"
)

const usageText = `usage: vanish <command> [flags]

commands:
  list [continents|countries|regions|cities|servers]   query the server catalog
  connect [--server HANDLE] [-- openvpn args...]        connect to a server
                                                        (--server excludes filters)
  sync [status|profiles|all]                            refresh local data
  probe                                                 measure response times
  status                                                show last sync times
  version                                               print the version

filters (list, connect, probe), repeatable:
  --continent NAME|CODE  --country NAME|CODE  --region NAME|CODE  --city NAME

output (list, probe, status):
  --format table|json|yaml
`

var listSubjects = []string{"continents", "countries", "regions", "cities", "servers"}

var syncSubjects = []string{"status", "profiles", "all"}

var formats = []string{"table", "json", "yaml"}

// invocation is a parsed command line.
type invocation struct {
	command string
	subject string
	filter  catalog.Filter
	format  string
	server  string
	extra   []string
}

// stringSlice is a repeatable flag. Values are kept verbatim since location
// names may contain commas.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func usage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// parseArgs turns os.Args[1:] into an invocation. flag.ErrHelp is returned
// for -h; any other error is a usage error.
func parseArgs(args []string) (invocation, error) {
	if len(args) == 0 {
		return invocation{}, errors.New("missing command")
	}

	inv := invocation{command: args[0], format: "table"}
	args = args[1:]

	fs := flag.NewFlagSet(inv.command, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var continents, countries, regions, cities stringSlice
	withFilters := func() {
		fs.Var(&continents, "continent", "")
		fs.Var(&countries, "country", "")
		fs.Var(&regions, "region", "")
		fs.Var(&cities, "city", "")
	}
	withFormat := func() {
		fs.StringVar(&inv.format, "format", "table", "")
	}

	switch inv.command {
	case "list", "probe":
		withFilters()
		withFormat()
	case "connect":
		withFilters()
		fs.StringVar(&inv.server, "server", "", "")
		if i := indexOf(args, "--"); i >= 0 {
			inv.extra = append([]string(nil), args[i+1:]...)
			args = args[:i]
		}
	case "status":
		withFormat()
	case "sync", "version":
	case "-h", "--help", "help":
		return invocation{}, flag.ErrHelp
	default:
		return invocation{}, fmt.Errorf("unknown command %q", inv.command)
	}

	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return invocation{}, err
	}

	inv.filter = catalog.Filter{
		Continents: continents,
		Countries:  countries,
		Regions:    regions,
		Cities:     cities,
	}

	switch inv.command {
	case "list":
		inv.subject, err = subject(positional, listSubjects, "servers")
	case "sync":
		inv.subject, err = subject(positional, syncSubjects, "all")
	default:
		if len(positional) > 0 {
			err = fmt.Errorf("%s: unexpected argument %q", inv.command, positional[0])
		}
	}
	if err != nil {
		return invocation{}, err
	}

	if inv.server != "" && !inv.filter.Empty() {
		return invocation{}, errors.New("connect: --server cannot be combined with location filters")
	}

	if indexOf(formats, inv.format) < 0 {
		return invocation{}, fmt.Errorf("unknown format %q", inv.format)
	}
	return inv, nil
}

// parseInterleaved lets flags follow positional arguments, as in
// "list countries --continent EU".
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func subject(positional, allowed []string, fallback string) (string, error) {
	switch len(positional) {
	case 0:
		return fallback, nil
	case 1:
		if indexOf(allowed, positional[0]) < 0 {
			return "", fmt.Errorf("unknown subject %q, want one of %s", positional[0], strings.Join(allowed, "|"))
		}
		return positional[0], nil
	default:
		return "", fmt.Errorf("unexpected argument %q", positional[1])
	}
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return -1
}
