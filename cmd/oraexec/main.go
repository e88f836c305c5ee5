package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/erikwco/oraexec"
)

type request struct {
	SQL        string           `json:"sql"`
	Params     []map[string]any `json:"params"`
	OutFormat  string           `json:"outFormat"`
	AutoCommit *bool            `json:"autoCommit"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr))
}

// run executes one request, the normalized record goes to stdout and every
// error is logged to stderr. Credentials come from ORAEXEC_USER,
// ORAEXEC_PASSWORD and ORAEXEC_CONNECT_STRING.
func run(args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("oraexec", flag.ContinueOnError)
	flags.SetOutput(stderr)
	requestPath := flags.String("request", "-", "Path to the JSON request, - reads stdin")
	configPath := flags.String("config", "", "Optional JSON file with limits and pool settings")
	driver := flags.String("driver", oraexec.OracleDriver, "database/sql driver (oracle or sqlite3)")
	pooled := flags.Bool("pooled", false, "Acquire the connection from a shared pool")
	logLevel := flags.String("log-level", "info", "Log level")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	log := oraexec.NewConsoleLogger(stderr, *logLevel)

	req, err := readRequest(*requestPath, stdin)
	if err != nil {
		log.Err(err).Msg("Error reading request")
		return 1
	}

	cfg := oraexec.DefaultConfig()
	if *configPath != "" {
		if cfg, err = readConfig(*configPath); err != nil {
			log.Err(err).Msg("Error reading config")
			return 1
		}
	}

	params, err := oraexec.DecodeParams(req.Params)
	if err != nil {
		log.Err(err).Msg("Error decoding params")
		return 1
	}
	opts := oraexec.DefaultExecOptions()
	if opts.OutFormat, err = oraexec.ParseOutFormat(req.OutFormat); err != nil {
		log.Err(err).Msg("Error decoding request")
		return 1
	}
	if req.AutoCommit != nil {
		opts.AutoCommit = *req.AutoCommit
	}

	pool := oraexec.NewPool(cfg.Connection, log)
	defer func() {
		_ = pool.Close()
	}()
	runner := oraexec.NewRunner(oraexec.NewSQLAcquirer(*driver, pool, cfg.Connection, log), cfg, log)

	result, err := runner.Run(context.Background(), oraexec.Request{
		SQL:    req.SQL,
		Params: params,
		Credentials: oraexec.Credentials{
			User:          getenv("ORAEXEC_USER"),
			Password:      getenv("ORAEXEC_PASSWORD"),
			ConnectString: getenv("ORAEXEC_CONNECT_STRING"),
			Pooled:        *pooled,
		},
		Options: opts,
	})
	if err != nil {
		log.Err(err).Msg("Error executing statement")
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Err(err).Msg("Error encoding result")
		return 1
	}
	return 0
}

func readRequest(path string, stdin io.Reader) (*request, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var req request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func readConfig(path string) (oraexec.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return oraexec.Config{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return oraexec.Config{}, err
	}
	return oraexec.ConfigFromMap(raw)
}
